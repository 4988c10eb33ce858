package events

import (
	"github.com/vsinha/restock/pkg/domain/entities"
)

const (
	AcquisitionRecordedEvent = "acquisition.recorded"
	EstimateComputedEvent    = "estimate.computed"
	StatusTransitionedEvent  = "status.transitioned"
)

type AcquisitionRecorded struct {
	Acquisition entities.AcquisitionEvent `json:"acquisition"`
}

type EstimateComputed struct {
	Estimate entities.InventoryEstimate `json:"estimate"`
}

type StatusTransitioned struct {
	Transition entities.StatusTransition `json:"transition"`
}

// StreamFor names the stream that carries events for a pair
func StreamFor(key entities.PairKey) string {
	return key.String()
}

func NewAcquisitionRecordedEvent(acquisition entities.AcquisitionEvent) Event {
	return NewEvent(
		AcquisitionRecordedEvent,
		StreamFor(acquisition.Key()),
		AcquisitionRecorded{Acquisition: acquisition},
		acquisition.AcquiredAt,
	)
}

func NewEstimateComputedEvent(estimate entities.InventoryEstimate) Event {
	return NewEvent(
		EstimateComputedEvent,
		StreamFor(estimate.Key),
		EstimateComputed{Estimate: estimate},
		estimate.ComputedAt,
	)
}

func NewStatusTransitionedEvent(transition entities.StatusTransition) Event {
	return NewEvent(
		StatusTransitionedEvent,
		StreamFor(transition.Key),
		StatusTransitioned{Transition: transition},
		transition.OccurredAt,
	)
}

// TransitionFrom extracts the transition carried by a status.transitioned event
func TransitionFrom(event Event) (entities.StatusTransition, bool) {
	data, ok := event.Data().(StatusTransitioned)
	if !ok {
		return entities.StatusTransition{}, false
	}
	return data.Transition, true
}

// AcquisitionFrom extracts the acquisition carried by an acquisition.recorded event
func AcquisitionFrom(event Event) (entities.AcquisitionEvent, bool) {
	data, ok := event.Data().(AcquisitionRecorded)
	if !ok {
		return entities.AcquisitionEvent{}, false
	}
	return data.Acquisition, true
}
