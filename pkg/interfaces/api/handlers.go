package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vsinha/restock/pkg/application/dto"
	"github.com/vsinha/restock/pkg/application/services/estimation"
	"github.com/vsinha/restock/pkg/domain/entities"
)

type runSummary struct {
	RunID       string         `json:"run_id"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Pairs       int            `json:"pairs"`
	Failures    int            `json:"failures"`
	Cancelled   bool           `json:"cancelled"`
	Statuses    map[string]int `json:"statuses"`
}

type healthResponse struct {
	Status  string      `json:"status"`
	LastRun *runSummary `json:"last_run,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type estimatesResponse struct {
	Count     int                          `json:"count"`
	Estimates []entities.InventoryEstimate `json:"estimates"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.trigger != nil {
		last, err := s.trigger.Last()
		if last != nil {
			resp.LastRun = summarize(last)
		}
		if errors.Is(err, estimation.ErrLedgerUnavailable) {
			resp.Status = "degraded"
			resp.Error = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listEstimates(w http.ResponseWriter, r *http.Request) {
	var filter *entities.StockStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := entities.ParseStockStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = &status
	}

	records, err := s.estimator.ListEstimates(r.Context())
	if err != nil {
		s.log.Error("list_estimates_err", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list estimates")
		return
	}

	estimates := make([]entities.InventoryEstimate, 0, len(records))
	for _, record := range records {
		if filter != nil && record.Estimate.Status != *filter {
			continue
		}
		estimates = append(estimates, record.Estimate)
	}
	writeJSON(w, http.StatusOK, estimatesResponse{Count: len(estimates), Estimates: estimates})
}

func (s *Server) getEstimate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	consumer := entities.ConsumerID(vars["consumer"])
	item := entities.ItemID(vars["item"])

	// A current read refreshes the stored estimate; an explicit "at" is a
	// what-if evaluation and leaves the store untouched.
	evaluate := s.estimator.Estimate
	at := s.clock()
	if raw := strings.TrimSpace(r.URL.Query().Get("at")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be an RFC3339 timestamp")
			return
		}
		at = parsed
		evaluate = s.estimator.Preview
	}

	estimate, err := evaluate(r.Context(), consumer, item, at)
	if err != nil {
		s.log.Error("estimate_err", "consumer", string(consumer), "item", string(item), "err", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func (s *Server) recompute(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusNotImplemented, "scheduler not running")
		return
	}
	queued := s.trigger.TriggerNow()
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

type acquisitionRequest struct {
	ConsumerID  string          `json:"consumer_id"`
	ItemID      string          `json:"item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	PurchasedAt time.Time       `json:"purchased_at"`
}

// maxAcquisitionBody caps a single acquisition request
const maxAcquisitionBody = 1 << 16

func (s *Server) recordAcquisition(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		writeError(w, http.StatusNotImplemented, "ledger is read-only")
		return
	}

	var req acquisitionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAcquisitionBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid acquisition body: "+err.Error())
		return
	}

	acquisition, err := entities.NewAcquisitionEvent(
		entities.ConsumerID(strings.TrimSpace(req.ConsumerID)),
		entities.ItemID(strings.TrimSpace(req.ItemID)),
		req.Quantity,
		req.PurchasedAt,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ingestor.AppendAcquisition(r.Context(), *acquisition); err != nil {
		s.log.Error("acquisition_record_err", "pair", acquisition.Key().String(), "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record acquisition")
		return
	}
	writeJSON(w, http.StatusCreated, acquisition)
}

func summarize(result *dto.BatchResult) *runSummary {
	statuses := make(map[string]int)
	for status, n := range result.StatusCounts() {
		statuses[status.String()] = n
	}
	return &runSummary{
		RunID:       result.RunID.String(),
		EvaluatedAt: result.EvaluatedAt,
		FinishedAt:  result.FinishedAt,
		Pairs:       len(result.Entries),
		Failures:    result.Failures(),
		Cancelled:   result.Cancelled,
		Statuses:    statuses,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
