package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Day is the unit used for cycle lengths
const Day = 24 * time.Hour

// StockStatus is the qualitative stock level of a pair
type StockStatus int

const (
	StatusUnknown StockStatus = iota
	StatusCritical
	StatusLow
	StatusMedium
	StatusHigh
)

// String method for StockStatus enum
func (s StockStatus) String() string {
	switch s {
	case StatusCritical:
		return "CRITICAL"
	case StatusLow:
		return "LOW"
	case StatusMedium:
		return "MEDIUM"
	case StatusHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseStockStatus converts a status name back into a StockStatus
func ParseStockStatus(s string) (StockStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "UNKNOWN":
		return StatusUnknown, nil
	case "CRITICAL":
		return StatusCritical, nil
	case "LOW":
		return StatusLow, nil
	case "MEDIUM":
		return StatusMedium, nil
	case "HIGH":
		return StatusHigh, nil
	default:
		return StatusUnknown, fmt.Errorf("invalid stock status: %s (expected UNKNOWN, CRITICAL, LOW, MEDIUM or HIGH)", s)
	}
}

// MarshalText encodes the status by name
func (s StockStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name
func (s *StockStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStockStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NeedsReorder is true for the statuses that should prompt a reorder reminder
func (s StockStatus) NeedsReorder() bool {
	return s == StatusLow || s == StatusCritical
}

// InventoryEstimate is the derived stock estimate for a pair at one evaluation time.
//
// Optional values carry an explicit Has* flag instead of a sentinel.
type InventoryEstimate struct {
	Key                  PairKey     `json:"key"`
	FractionRemaining    float64     `json:"fraction_remaining"`
	HasFraction          bool        `json:"has_fraction"`
	Status               StockStatus `json:"status"`
	EstimatedDepletionAt time.Time   `json:"estimated_depletion_at"`
	HasDepletion         bool        `json:"has_depletion"`
	DaysRemaining        float64     `json:"days_remaining"`
	Confidence           float64     `json:"confidence"`
	ComputedAt           time.Time   `json:"computed_at"`
}

// UnknownEstimate is the estimate for a pair without a usable cycle
func UnknownEstimate(key PairKey, now time.Time) InventoryEstimate {
	return InventoryEstimate{
		Key:        key,
		Status:     StatusUnknown,
		ComputedAt: now,
	}
}

// StatusTransition records a pair moving from one status to another
type StatusTransition struct {
	Key        PairKey           `json:"key"`
	From       StockStatus       `json:"from"`
	To         StockStatus       `json:"to"`
	Estimate   InventoryEstimate `json:"estimate"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// DurationToDays converts a duration into fractional days
func DurationToDays(d time.Duration) float64 {
	return float64(d) / float64(Day)
}

// DaysToDuration converts fractional days into a duration, rounded to the nanosecond
func DaysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days * float64(Day)))
}
