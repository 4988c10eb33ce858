package services

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/restock/pkg/domain/entities"
)

var (
	testKey = entities.PairKey{Consumer: "CLINIC_A", Item: "GLOVES_M"}
	day0    = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

func eventsAtDays(days ...float64) []entities.AcquisitionEvent {
	events := make([]entities.AcquisitionEvent, 0, len(days))
	for _, d := range days {
		events = append(events, entities.AcquisitionEvent{
			Consumer:   testKey.Consumer,
			Item:       testKey.Item,
			Quantity:   decimal.NewFromInt(10),
			AcquiredAt: day0.Add(entities.DaysToDuration(d)),
		})
	}
	return events
}

func TestCycleEstimator_InsufficientHistory(t *testing.T) {
	estimator := NewCycleEstimator(nil)

	t.Run("no events", func(t *testing.T) {
		profile := estimator.BuildProfile(testKey, nil)
		if profile.SampleCount != 0 {
			t.Errorf("Expected sample count 0, got %d", profile.SampleCount)
		}
		if profile.HasMeanInterval {
			t.Error("Expected mean interval to be undefined")
		}
		if profile.HasLastAcquisition() {
			t.Error("Expected no last acquisition")
		}
	})

	t.Run("single event", func(t *testing.T) {
		events := eventsAtDays(4)
		events[0].Quantity = decimal.NewFromFloat(2.5)

		profile := estimator.BuildProfile(testKey, events)
		if profile.SampleCount != 1 {
			t.Errorf("Expected sample count 1, got %d", profile.SampleCount)
		}
		if profile.HasMeanInterval {
			t.Error("Expected mean interval to be undefined")
		}
		if !profile.LastAcquiredAt.Equal(events[0].AcquiredAt) {
			t.Errorf("Expected last acquisition %v, got %v", events[0].AcquiredAt, profile.LastAcquiredAt)
		}
		if !profile.LastQuantity.Equal(decimal.NewFromFloat(2.5)) {
			t.Errorf("Expected last quantity 2.5, got %s", profile.LastQuantity)
		}
	})
}

func TestCycleEstimator_TwoEvents(t *testing.T) {
	profile := NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, 10))

	if !profile.HasMeanInterval {
		t.Fatal("Expected mean interval to be defined")
	}
	if profile.MeanIntervalDays != 10 {
		t.Errorf("Expected mean interval 10, got %v", profile.MeanIntervalDays)
	}
	if profile.IntervalVariance != 0 {
		t.Errorf("Expected variance 0 for a single gap, got %v", profile.IntervalVariance)
	}
	if profile.SampleCount != 2 {
		t.Errorf("Expected sample count 2, got %d", profile.SampleCount)
	}
	expectedLast := day0.Add(10 * entities.Day)
	if !profile.LastAcquiredAt.Equal(expectedLast) {
		t.Errorf("Expected last acquisition %v, got %v", expectedLast, profile.LastAcquiredAt)
	}
}

func TestCycleEstimator_OutlierResistance(t *testing.T) {
	// gaps 7,7,7,7,90
	events := eventsAtDays(0, 7, 14, 21, 28, 118)
	profile := NewCycleEstimator(nil).BuildProfile(testKey, events)

	if math.Abs(profile.MeanIntervalDays-7) > 1e-9 {
		t.Errorf("Expected trimmed mean 7, got %v", profile.MeanIntervalDays)
	}
	if profile.TrimmedGaps != 1 {
		t.Errorf("Expected 1 trimmed gap, got %d", profile.TrimmedGaps)
	}
	if profile.RetainedGaps != 4 {
		t.Errorf("Expected 4 retained gaps, got %d", profile.RetainedGaps)
	}
	// The decay clock starts at the true last acquisition, including the outlier gap.
	expectedLast := day0.Add(118 * entities.Day)
	if !profile.LastAcquiredAt.Equal(expectedLast) {
		t.Errorf("Expected last acquisition %v, got %v", expectedLast, profile.LastAcquiredAt)
	}
}

func TestTrimOutlierGaps(t *testing.T) {
	tests := []struct {
		name     string
		gaps     []float64
		expected []float64
	}{
		{"empty", nil, nil},
		{"bulk reorder", []float64{7, 7, 7, 7, 90}, []float64{7, 7, 7, 7}},
		{"rush reorder", []float64{30, 30, 2, 30}, []float64{30, 30, 30}},
		{"inclusive bounds", []float64{3, 9, 27}, []float64{3, 9, 27}},
		{"even count median", []float64{10, 20, 1, 100}, []float64{10, 20}},
		{"year long cycles", []float64{365, 360, 370}, []float64{365, 360, 370}},
		{"zero median keeps zeros", []float64{0, 0, 10}, []float64{0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TrimOutlierGaps(tc.gaps)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestCycleEstimator_VarianceAndMean(t *testing.T) {
	// gaps 6, 8, 10
	profile := NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, 6, 14, 24))

	if math.Abs(profile.MeanIntervalDays-8) > 1e-9 {
		t.Errorf("Expected mean 8, got %v", profile.MeanIntervalDays)
	}
	if math.Abs(profile.IntervalVariance-4) > 1e-9 {
		t.Errorf("Expected sample variance 4, got %v", profile.IntervalVariance)
	}
}

func TestCycleEstimator_DiscardsInvalidEvents(t *testing.T) {
	events := eventsAtDays(0, 5, 10)
	events[1].Quantity = decimal.Zero
	events = append(events, entities.AcquisitionEvent{
		Consumer: testKey.Consumer,
		Item:     testKey.Item,
		Quantity: decimal.NewFromInt(-3),
		// zero timestamp and negative quantity
	})

	profile := NewCycleEstimator(nil).BuildProfile(testKey, events)

	if profile.DiscardedEvents != 2 {
		t.Errorf("Expected 2 discarded events, got %d", profile.DiscardedEvents)
	}
	if profile.SampleCount != 2 {
		t.Errorf("Expected sample count 2, got %d", profile.SampleCount)
	}
	if profile.MeanIntervalDays != 10 {
		t.Errorf("Expected mean 10 after discarding day 5, got %v", profile.MeanIntervalDays)
	}
	if profile.Watermark.EventCount != 4 {
		t.Errorf("Expected watermark over 4 raw events, got %d", profile.Watermark.EventCount)
	}
}

func TestCycleEstimator_UnsortedInputIsNotMutated(t *testing.T) {
	events := eventsAtDays(20, 0, 10)
	original := append([]entities.AcquisitionEvent(nil), events...)

	profile := NewCycleEstimator(nil).BuildProfile(testKey, events)

	if profile.MeanIntervalDays != 10 {
		t.Errorf("Expected mean 10, got %v", profile.MeanIntervalDays)
	}
	if !reflect.DeepEqual(events, original) {
		t.Error("Expected input slice to be left untouched")
	}
}

func TestCycleEstimator_Idempotent(t *testing.T) {
	estimator := NewCycleEstimator(nil)
	events := eventsAtDays(0, 6.5, 13, 21.25, 27, 35, 200)

	first := estimator.BuildProfile(testKey, events)
	second := estimator.BuildProfile(testKey, events)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical profiles, got %+v and %+v", first, second)
	}
	if math.Float64bits(first.MeanIntervalDays) != math.Float64bits(second.MeanIntervalDays) {
		t.Error("Expected bit-identical mean interval")
	}
	if math.Float64bits(first.IntervalVariance) != math.Float64bits(second.IntervalVariance) {
		t.Error("Expected bit-identical variance")
	}
}
