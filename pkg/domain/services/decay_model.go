package services

import (
	"math"
	"time"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// priorSamples is the pseudo-count that damps confidence for short histories
const priorSamples = 3.0

// DecayResult is the output of evaluating a profile at one instant
type DecayResult struct {
	FractionRemaining    float64
	HasFraction          bool
	EstimatedDepletionAt time.Time
	HasDepletion         bool
	Confidence           float64
}

// DecayModel depletes stock linearly over one learned cycle
type DecayModel struct{}

// NewDecayModel creates a linear decay model
func NewDecayModel() *DecayModel {
	return &DecayModel{}
}

// Evaluate computes the remaining fraction of profile's last acquisition at now.
// It is a pure function of its arguments.
func (dm *DecayModel) Evaluate(profile entities.CycleProfile, now time.Time) DecayResult {
	var result DecayResult

	// A zero or negative cycle would divide by zero; leave the fraction undefined.
	if !profile.HasMeanInterval || !isFinitePositive(profile.MeanIntervalDays) || !profile.HasLastAcquisition() {
		return result
	}
	m := profile.MeanIntervalDays

	elapsed := entities.DurationToDays(now.Sub(profile.LastAcquiredAt))
	if elapsed < 0 {
		elapsed = 0
	}

	// (m - elapsed) / m rather than 1 - elapsed/m keeps values such as 7/10
	// identical to the literal 0.7 used by the classifier.
	result.FractionRemaining = clamp((m-elapsed)/m, 0, 1)
	result.HasFraction = true

	result.EstimatedDepletionAt = profile.LastAcquiredAt.Add(entities.DaysToDuration(m))
	result.HasDepletion = true

	result.Confidence = Confidence(profile)

	return result
}

// Confidence scores a profile by sample size and cycle regularity.
// Profiles without a learned cycle score zero.
func Confidence(profile entities.CycleProfile) float64 {
	if !profile.HasMeanInterval {
		return 0
	}
	n := float64(profile.SampleCount)
	sampleWeight := clamp(n/(n+priorSamples), 0, 1)

	var cv float64
	if profile.MeanIntervalDays > 0 {
		cv = math.Sqrt(profile.IntervalVariance) / profile.MeanIntervalDays
	}
	if math.IsNaN(cv) || cv > 1 {
		cv = 1
	}
	return clamp(sampleWeight*(1-cv), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
