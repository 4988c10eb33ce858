// Package api serves estimates and operator controls over HTTP.
package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vsinha/restock/pkg/application/dto"
	"github.com/vsinha/restock/pkg/domain/entities"
)

// Estimator is the read side the API exposes
type Estimator interface {
	Estimate(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID, now time.Time) (entities.InventoryEstimate, error)
	Preview(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID, at time.Time) (entities.InventoryEstimate, error)
	ListEstimates(ctx context.Context) ([]entities.EstimateRecord, error)
}

// Trigger requests recompute runs and reports the latest one
type Trigger interface {
	TriggerNow() bool
	Last() (*dto.BatchResult, error)
}

// Ingestor records acquisitions posted to the API
type Ingestor interface {
	AppendAcquisition(ctx context.Context, acquisition entities.AcquisitionEvent) error
}

// Server holds the dependencies of the HTTP handlers
type Server struct {
	estimator Estimator
	trigger   Trigger
	ingestor  Ingestor
	metrics   http.Handler
	log       *slog.Logger
	clock     func() time.Time
}

// NewServer creates a server. trigger and metrics may be nil.
func NewServer(estimator Estimator, trigger Trigger, metrics http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		estimator: estimator,
		trigger:   trigger,
		metrics:   metrics,
		log:       log.With(slog.String("component", "api")),
		clock:     time.Now,
	}
}

// WithClock sets the evaluation time used when a request carries no "at"
func (s *Server) WithClock(clock func() time.Time) *Server {
	s.clock = clock
	return s
}

// WithIngestor enables POST /acquisitions
func (s *Server) WithIngestor(ingestor Ingestor) *Server {
	s.ingestor = ingestor
	return s
}

// NewRouter registers every route on a fresh router
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/estimates", s.listEstimates).Methods(http.MethodGet)
	r.HandleFunc("/estimates/{consumer}/{item}", s.getEstimate).Methods(http.MethodGet)
	r.HandleFunc("/recompute", s.recompute).Methods(http.MethodPost)
	r.HandleFunc("/acquisitions", s.recordAcquisition).Methods(http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}

	return r
}

// Handler wraps the router with access logging to accessLog and panic recovery
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(s.NewRouter())
	return handlers.LoggingHandler(accessLog, recovered)
}

// NewHTTPServer builds an http.Server with conservative timeouts
func (s *Server) NewHTTPServer(addr string, accessLog io.Writer) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(accessLog),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
