package events

import (
	"log/slog"
	"sync"
)

// InMemoryBus dispatches each event to its handlers on separate goroutines.
// Only a per-stream sequence counter is kept, one entry per pair.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string][]EventHandler
	sequences   map[string]int
	logger      *slog.Logger
	inFlight    sync.WaitGroup
}

func NewInMemoryBus(logger *slog.Logger) *InMemoryBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		subscribers: make(map[string][]EventHandler),
		sequences:   make(map[string]int),
		logger:      logger.With(slog.String("component", "event_bus")),
	}
}

var _ Bus = (*InMemoryBus)(nil)

// Publish numbers the event within its stream and hands it to subscribers
func (b *InMemoryBus) Publish(event Event) error {
	b.mu.Lock()
	b.sequences[event.StreamID()]++
	sequenced := BaseEvent{
		EventType:     event.Type(),
		Stream:        event.StreamID(),
		EventData:     event.Data(),
		EventTime:     event.Timestamp(),
		EventSequence: b.sequences[event.StreamID()],
	}
	handlers := append([]EventHandler(nil), b.subscribers[event.Type()]...)
	// Add under the lock so a concurrent Drain cannot miss this delivery.
	for _, handler := range handlers {
		if handler.CanHandle(sequenced.Type()) {
			b.inFlight.Add(1)
		}
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		if !handler.CanHandle(sequenced.Type()) {
			continue
		}
		go b.deliver(handler, sequenced)
	}
	return nil
}

func (b *InMemoryBus) deliver(handler EventHandler, event Event) {
	defer b.inFlight.Done()
	if err := handler.Handle(event); err != nil {
		b.logger.Error("event_handler_err",
			slog.String("type", event.Type()),
			slog.String("stream", event.StreamID()),
			slog.Any("err", err),
		)
	}
}

func (b *InMemoryBus) Subscribe(eventTypes []string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, eventType := range eventTypes {
		b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	}
	return nil
}

// Drain blocks until every handler started so far has returned.
func (b *InMemoryBus) Drain() {
	b.inFlight.Wait()
}
