package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// PairResult is the outcome of one pair within a recompute run.
// A pair whose ledger read failed carries an UNKNOWN estimate and the error text.
type PairResult struct {
	Key      entities.PairKey           `json:"key"`
	Estimate entities.InventoryEstimate `json:"estimate"`
	Error    string                     `json:"error,omitempty"`
}

// Failed reports whether the pair could not be evaluated
func (r PairResult) Failed() bool {
	return r.Error != ""
}

// BatchResult contains the complete output of a recompute run
type BatchResult struct {
	RunID       uuid.UUID    `json:"run_id"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	TotalPairs  int          `json:"total_pairs"`
	Entries     []PairResult `json:"entries"`
	Cancelled   bool         `json:"cancelled"`
}

// Failures returns the number of pairs that could not be evaluated
func (b *BatchResult) Failures() int {
	count := 0
	for _, entry := range b.Entries {
		if entry.Failed() {
			count++
		}
	}
	return count
}

// StatusCounts tallies entries by status
func (b *BatchResult) StatusCounts() map[entities.StockStatus]int {
	counts := make(map[entities.StockStatus]int)
	for _, entry := range b.Entries {
		counts[entry.Estimate.Status]++
	}
	return counts
}

// Duration is the wall-clock time the run took
func (b *BatchResult) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

// Estimates returns the entry estimates in pair order
func (b *BatchResult) Estimates() []entities.InventoryEstimate {
	estimates := make([]entities.InventoryEstimate, len(b.Entries))
	for i, entry := range b.Entries {
		estimates[i] = entry.Estimate
	}
	return estimates
}
