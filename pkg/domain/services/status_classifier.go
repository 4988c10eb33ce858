package services

import (
	"time"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// Lower bounds of each band; a value equal to a bound belongs to the higher band.
const (
	LowThreshold    = 0.10
	MediumThreshold = 0.30
	HighThreshold   = 0.70
)

// Classify maps a remaining fraction to a stock status
func Classify(fraction float64, known bool) entities.StockStatus {
	switch {
	case !known:
		return entities.StatusUnknown
	case fraction >= HighThreshold:
		return entities.StatusHigh
	case fraction >= MediumThreshold:
		return entities.StatusMedium
	case fraction >= LowThreshold:
		return entities.StatusLow
	default:
		return entities.StatusCritical
	}
}

// BuildEstimate labels a decay result and projects the days left until depletion
func BuildEstimate(key entities.PairKey, result DecayResult, now time.Time) entities.InventoryEstimate {
	estimate := entities.InventoryEstimate{
		Key:               key,
		FractionRemaining: result.FractionRemaining,
		HasFraction:       result.HasFraction,
		Status:            Classify(result.FractionRemaining, result.HasFraction),
		Confidence:        result.Confidence,
		ComputedAt:        now,
	}
	if !result.HasFraction {
		estimate.FractionRemaining = 0
	}

	if result.HasDepletion {
		estimate.EstimatedDepletionAt = result.EstimatedDepletionAt
		estimate.HasDepletion = true
		estimate.DaysRemaining = clamp(entities.DurationToDays(result.EstimatedDepletionAt.Sub(now)), 0, maxDays)
	}

	return estimate
}

// maxDays caps DaysRemaining so absurd cycles cannot overflow downstream formatting
const maxDays = 1e6
