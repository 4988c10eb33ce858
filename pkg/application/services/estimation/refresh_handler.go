package estimation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vsinha/restock/pkg/infrastructure/events"
)

// RefreshHandler re-estimates a pair whenever an acquisition is recorded for it
type RefreshHandler struct {
	orchestrator *Orchestrator
	clock        func() time.Time
	timeout      time.Duration
}

// NewRefreshHandler creates a handler that evaluates at clock() (nil = time.Now)
func NewRefreshHandler(orchestrator *Orchestrator, clock func() time.Time) *RefreshHandler {
	if clock == nil {
		clock = time.Now
	}
	return &RefreshHandler{
		orchestrator: orchestrator,
		clock:        clock,
		timeout:      30 * time.Second,
	}
}

var _ events.EventHandler = (*RefreshHandler)(nil)

func (h *RefreshHandler) CanHandle(eventType string) bool {
	return eventType == events.AcquisitionRecordedEvent
}

func (h *RefreshHandler) Handle(event events.Event) error {
	acquisition, ok := events.AcquisitionFrom(event)
	if !ok {
		return fmt.Errorf("unexpected payload for %s event", event.Type())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	estimate, err := h.orchestrator.Estimate(ctx, acquisition.Consumer, acquisition.Item, h.clock())
	if err != nil {
		return fmt.Errorf("failed to refresh %s: %w", acquisition.Key(), err)
	}
	h.orchestrator.logger.Debug("pair_refreshed",
		slog.String("pair", estimate.Key.String()),
		slog.String("status", estimate.Status.String()),
	)
	return nil
}

// Subscribe registers the handler on store
func (h *RefreshHandler) Subscribe(store events.Bus) error {
	return store.Subscribe([]string{events.AcquisitionRecordedEvent}, h)
}
