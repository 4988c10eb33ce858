package events

import (
	"time"
)

// Event is a typed notification carried on the bus
type Event interface {
	Type() string
	StreamID() string
	Data() interface{}
	Timestamp() time.Time
	// Sequence numbers events within their stream, starting at 1
	Sequence() int
}

type EventHandler interface {
	Handle(event Event) error
	CanHandle(eventType string) bool
}

// Bus delivers published events to the handlers subscribed to their type.
// Nothing is retained once delivered.
type Bus interface {
	Publish(event Event) error
	Subscribe(eventTypes []string, handler EventHandler) error
}

type BaseEvent struct {
	EventType     string
	Stream        string
	EventData     interface{}
	EventTime     time.Time
	EventSequence int
}

func (e BaseEvent) Type() string {
	return e.EventType
}

func (e BaseEvent) StreamID() string {
	return e.Stream
}

func (e BaseEvent) Data() interface{} {
	return e.EventData
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Sequence() int {
	return e.EventSequence
}

// NewEvent stamps an event with occurredAt; the bus assigns the sequence.
func NewEvent(eventType, streamID string, data interface{}, occurredAt time.Time) Event {
	return BaseEvent{
		EventType: eventType,
		Stream:    streamID,
		EventData: data,
		EventTime: occurredAt,
	}
}
