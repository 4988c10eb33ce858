package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Watermark summarises the raw ledger history a profile was built from
type Watermark struct {
	EventCount int       `json:"event_count"`
	Latest     time.Time `json:"latest"`
}

// Equal reports whether two watermarks describe the same ledger state
func (w Watermark) Equal(other Watermark) bool {
	return w.EventCount == other.EventCount && w.Latest.Equal(other.Latest)
}

// CycleProfile is the learned purchase interval for one pair.
//
// MeanIntervalDays is only meaningful when HasMeanInterval is true, which
// requires at least two usable events.
type CycleProfile struct {
	Key              PairKey         `json:"key"`
	SampleCount      int             `json:"sample_count"`
	MeanIntervalDays float64         `json:"mean_interval_days"`
	HasMeanInterval  bool            `json:"has_mean_interval"`
	IntervalVariance float64         `json:"interval_variance"`
	LastAcquiredAt   time.Time       `json:"last_acquired_at"`
	LastQuantity     decimal.Decimal `json:"last_quantity"`
	RetainedGaps     int             `json:"retained_gaps"`
	TrimmedGaps      int             `json:"trimmed_gaps"`
	DiscardedEvents  int             `json:"discarded_events"`
	Watermark        Watermark       `json:"watermark"`
}

// HasLastAcquisition reports whether any usable event was seen
func (p CycleProfile) HasLastAcquisition() bool {
	return !p.LastAcquiredAt.IsZero()
}

// MeanInterval returns the learned cycle as a duration
func (p CycleProfile) MeanInterval() (time.Duration, bool) {
	if !p.HasMeanInterval {
		return 0, false
	}
	return DaysToDuration(p.MeanIntervalDays), true
}

// EstimateRecord is what the estimate store keeps per pair
type EstimateRecord struct {
	Profile  CycleProfile      `json:"profile"`
	Estimate InventoryEstimate `json:"estimate"`
}
