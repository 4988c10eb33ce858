package services

import (
	"math"
	"testing"
	"time"

	"github.com/vsinha/restock/pkg/domain/entities"
)

func tenDayProfile() entities.CycleProfile {
	return NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, 10))
}

func TestDecayModel_TwoEventScenario(t *testing.T) {
	profile := tenDayProfile()
	model := NewDecayModel()
	expectedDepletion := day0.Add(20 * entities.Day)

	tests := []struct {
		name             string
		daysAfterLast    float64
		expectedFraction float64
		expectedStatus   entities.StockStatus
	}{
		{"day 3", 3, 0.7, entities.StatusHigh},
		{"day 5", 5, 0.5, entities.StatusMedium},
		{"day 9", 9, 0.1, entities.StatusLow},
		{"day 10", 10, 0.0, entities.StatusCritical},
		{"day 15 clamps", 15, 0.0, entities.StatusCritical},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := profile.LastAcquiredAt.Add(entities.DaysToDuration(tc.daysAfterLast))
			result := model.Evaluate(profile, now)

			if !result.HasFraction {
				t.Fatal("Expected fraction to be defined")
			}
			if result.FractionRemaining != tc.expectedFraction {
				t.Errorf("Expected fraction %v, got %v", tc.expectedFraction, result.FractionRemaining)
			}
			estimate := BuildEstimate(testKey, result, now)
			if estimate.Status != tc.expectedStatus {
				t.Errorf("Expected status %s, got %s", tc.expectedStatus, estimate.Status)
			}
			if !result.EstimatedDepletionAt.Equal(expectedDepletion) {
				t.Errorf("Expected depletion at %v, got %v", expectedDepletion, result.EstimatedDepletionAt)
			}
		})
	}
}

func TestDecayModel_ZeroAtOneCycle(t *testing.T) {
	for _, gap := range []float64{1, 7, 10, 30.5, 365} {
		profile := NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, gap))
		now := profile.LastAcquiredAt.Add(entities.DaysToDuration(profile.MeanIntervalDays))

		result := NewDecayModel().Evaluate(profile, now)
		if result.FractionRemaining != 0 {
			t.Errorf("cycle %v: expected fraction 0 at one cycle, got %v", gap, result.FractionRemaining)
		}
		if status := Classify(result.FractionRemaining, result.HasFraction); status != entities.StatusCritical {
			t.Errorf("cycle %v: expected CRITICAL, got %s", gap, status)
		}
	}
}

func TestDecayModel_Monotonic(t *testing.T) {
	profile := NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, 6, 13, 21, 27))
	model := NewDecayModel()

	previous := math.Inf(1)
	for hours := -48; hours <= 24*40; hours += 7 {
		now := profile.LastAcquiredAt.Add(time.Duration(hours) * time.Hour)
		result := model.Evaluate(profile, now)
		if result.FractionRemaining > previous {
			t.Fatalf("fraction increased at +%dh: %v > %v", hours, result.FractionRemaining, previous)
		}
		previous = result.FractionRemaining
	}
}

func TestDecayModel_BeforeLastAcquisitionIsFull(t *testing.T) {
	profile := tenDayProfile()
	result := NewDecayModel().Evaluate(profile, profile.LastAcquiredAt.Add(-72*time.Hour))

	if result.FractionRemaining != 1 {
		t.Errorf("Expected fraction 1 before the last acquisition, got %v", result.FractionRemaining)
	}
}

func TestDecayModel_UndefinedCycle(t *testing.T) {
	model := NewDecayModel()

	tests := []struct {
		name    string
		profile entities.CycleProfile
	}{
		{"no history", NewCycleEstimator(nil).BuildProfile(testKey, nil)},
		{"single event", NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0))},
		{"zero mean interval", NewCycleEstimator(nil).BuildProfile(testKey, eventsAtDays(0, 0, 0))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := model.Evaluate(tc.profile, day0.Add(5*entities.Day))
			if result.HasFraction {
				t.Errorf("Expected undefined fraction, got %v", result.FractionRemaining)
			}
			if result.HasDepletion {
				t.Error("Expected undefined depletion date")
			}
			if math.IsNaN(result.FractionRemaining) || math.IsInf(result.FractionRemaining, 0) {
				t.Errorf("Expected finite placeholder, got %v", result.FractionRemaining)
			}
			estimate := BuildEstimate(testKey, result, day0)
			if estimate.Status != entities.StatusUnknown {
				t.Errorf("Expected UNKNOWN, got %s", estimate.Status)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name     string
		profile  entities.CycleProfile
		expected float64
	}{
		{
			name:     "undefined cycle",
			profile:  entities.CycleProfile{SampleCount: 1},
			expected: 0,
		},
		{
			name:     "regular cycle",
			profile:  entities.CycleProfile{SampleCount: 3, HasMeanInterval: true, MeanIntervalDays: 10},
			expected: 0.5,
		},
		{
			name:     "irregular cycle",
			profile:  entities.CycleProfile{SampleCount: 9, HasMeanInterval: true, MeanIntervalDays: 10, IntervalVariance: 25},
			expected: 0.75 * 0.5,
		},
		{
			name:     "variation beyond the mean",
			profile:  entities.CycleProfile{SampleCount: 9, HasMeanInterval: true, MeanIntervalDays: 2, IntervalVariance: 25},
			expected: 0,
		},
		{
			name:     "zero mean",
			profile:  entities.CycleProfile{SampleCount: 3, HasMeanInterval: true},
			expected: 0.5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Confidence(tc.profile)
			if math.Abs(got-tc.expected) > 1e-12 {
				t.Errorf("Expected confidence %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestBuildEstimate_DaysRemaining(t *testing.T) {
	profile := tenDayProfile()
	now := profile.LastAcquiredAt.Add(4 * entities.Day)

	estimate := BuildEstimate(testKey, NewDecayModel().Evaluate(profile, now), now)
	if estimate.DaysRemaining != 6 {
		t.Errorf("Expected 6 days remaining, got %v", estimate.DaysRemaining)
	}

	late := profile.LastAcquiredAt.Add(25 * entities.Day)
	estimate = BuildEstimate(testKey, NewDecayModel().Evaluate(profile, late), late)
	if estimate.DaysRemaining != 0 {
		t.Errorf("Expected days remaining to clamp at 0, got %v", estimate.DaysRemaining)
	}
	if !estimate.ComputedAt.Equal(late) {
		t.Errorf("Expected computed at %v, got %v", late, estimate.ComputedAt)
	}
}
