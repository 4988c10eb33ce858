package services

import (
	"log/slog"
	"math"
	"sort"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// outlierFactor bounds retained gaps to [median/outlierFactor, median*outlierFactor]
const outlierFactor = 3.0

// CycleEstimator learns a purchase interval from a pair's acquisition history
type CycleEstimator struct {
	logger *slog.Logger
}

// NewCycleEstimator creates a cycle estimator. A nil logger disables data-quality logging.
func NewCycleEstimator(logger *slog.Logger) *CycleEstimator {
	return &CycleEstimator{logger: logger}
}

// BuildProfile rebuilds the cycle profile for key from events.
//
// Events that fail validation are dropped and counted in DiscardedEvents.
// The input slice is never modified.
func (ce *CycleEstimator) BuildProfile(key entities.PairKey, events []entities.AcquisitionEvent) entities.CycleProfile {
	profile := entities.CycleProfile{
		Key:       key,
		Watermark: WatermarkOf(events),
	}

	usable := make([]entities.AcquisitionEvent, 0, len(events))
	for _, event := range events {
		if err := event.ValidateMeasurement(); err != nil {
			profile.DiscardedEvents++
			ce.reportDiscard(key, event, err)
			continue
		}
		usable = append(usable, event)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].AcquiredAt.Before(usable[j].AcquiredAt)
	})

	profile.SampleCount = len(usable)
	if len(usable) == 0 {
		return profile
	}

	last := usable[len(usable)-1]
	profile.LastAcquiredAt = last.AcquiredAt
	profile.LastQuantity = last.Quantity

	if len(usable) < 2 {
		return profile
	}

	gaps := make([]float64, 0, len(usable)-1)
	for i := 1; i < len(usable); i++ {
		gaps = append(gaps, entities.DurationToDays(usable[i].AcquiredAt.Sub(usable[i-1].AcquiredAt)))
	}

	retained := TrimOutlierGaps(gaps)
	profile.RetainedGaps = len(retained)
	profile.TrimmedGaps = len(gaps) - len(retained)
	profile.MeanIntervalDays = mean(retained)
	profile.IntervalVariance = sampleVariance(retained, profile.MeanIntervalDays)
	profile.HasMeanInterval = true

	return profile
}

func (ce *CycleEstimator) reportDiscard(key entities.PairKey, event entities.AcquisitionEvent, reason error) {
	if ce.logger == nil {
		return
	}
	ce.logger.Warn("data_quality_discard",
		slog.String("pair", key.String()),
		slog.String("quantity", event.Quantity.String()),
		slog.Time("acquired_at", event.AcquiredAt),
		slog.Any("reason", reason),
	)
}

// TrimOutlierGaps drops gaps outside [median/3, median*3].
// If every gap would be dropped the raw gaps are returned unchanged.
func TrimOutlierGaps(gaps []float64) []float64 {
	if len(gaps) == 0 {
		return nil
	}

	m := median(gaps)
	lower, upper := m/outlierFactor, m*outlierFactor

	retained := make([]float64, 0, len(gaps))
	for _, gap := range gaps {
		if gap >= lower && gap <= upper {
			retained = append(retained, gap)
		}
	}
	if len(retained) == 0 {
		return append([]float64(nil), gaps...)
	}
	return retained
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance uses the n-1 denominator; a single value has zero variance.
func sampleVariance(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	variance := sum / float64(len(values)-1)
	if math.IsNaN(variance) || math.IsInf(variance, 0) {
		return 0
	}
	return variance
}

// WatermarkOf summarises a raw history the same way ledgers report it
func WatermarkOf(events []entities.AcquisitionEvent) entities.Watermark {
	w := entities.Watermark{EventCount: len(events)}
	for _, event := range events {
		if event.AcquiredAt.After(w.Latest) {
			w.Latest = event.AcquiredAt
		}
	}
	return w
}
