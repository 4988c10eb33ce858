package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
	"github.com/vsinha/restock/pkg/infrastructure/events"
)

// EventRepository provides an in-memory acquisition ledger
type EventRepository struct {
	mu        sync.RWMutex
	histories map[entities.PairKey][]entities.AcquisitionEvent
	publisher events.Bus
	logger    *slog.Logger
}

// NewEventRepository creates a new in-memory ledger
func NewEventRepository(expectedPairs int) *EventRepository {
	return &EventRepository{
		histories: make(map[entities.PairKey][]entities.AcquisitionEvent, expectedPairs),
	}
}

// Verify interface compliance
var (
	_ repositories.EventRepository   = (*EventRepository)(nil)
	_ repositories.WatermarkReader   = (*EventRepository)(nil)
	_ repositories.AcquisitionWriter = (*EventRepository)(nil)
)

// WithPublisher publishes an acquisition.recorded event for every appended acquisition
func (r *EventRepository) WithPublisher(publisher events.Bus) *EventRepository {
	r.publisher = publisher
	return r
}

// WithLogger enables data-quality logging for rejected rows
func (r *EventRepository) WithLogger(logger *slog.Logger) *EventRepository {
	r.logger = logger
	return r
}

// RegisterPair makes a pair known to the ledger even before its first acquisition
func (r *EventRepository) RegisterPair(key entities.PairKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.histories[key]; !exists {
		r.histories[key] = []entities.AcquisitionEvent{}
	}
}

// LoadEvents appends every valid event, skipping and counting the invalid ones
func (r *EventRepository) LoadEvents(acquisitions []*entities.AcquisitionEvent) (int, error) {
	skipped := 0
	for _, acquisition := range acquisitions {
		if acquisition == nil {
			skipped++
			continue
		}
		if err := r.Append(*acquisition); err != nil {
			skipped++
			r.logDiscard(*acquisition, err)
		}
	}
	return skipped, nil
}

// Append validates and records an acquisition, keeping the pair history sorted
func (r *EventRepository) Append(acquisition entities.AcquisitionEvent) error {
	if err := acquisition.Validate(); err != nil {
		return fmt.Errorf("invalid acquisition for %s: %w", acquisition.Key(), err)
	}

	r.mu.Lock()
	key := acquisition.Key()
	history := append(r.histories[key], acquisition)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].AcquiredAt.Before(history[j].AcquiredAt)
	})
	r.histories[key] = history
	r.mu.Unlock()

	if r.publisher != nil {
		if err := r.publisher.Publish(events.NewAcquisitionRecordedEvent(acquisition)); err != nil && r.logger != nil {
			r.logger.Warn("acquisition_publish_err", slog.String("pair", key.String()), slog.Any("err", err))
		}
	}
	return nil
}

// AppendAcquisition records a single acquisition arriving at runtime
func (r *EventRepository) AppendAcquisition(ctx context.Context, acquisition entities.AcquisitionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Append(acquisition)
}

// Replace swaps the whole ledger for the given events, e.g. after a file reload.
// Registered pairs without acquisitions are kept.
func (r *EventRepository) Replace(acquisitions []*entities.AcquisitionEvent) int {
	next := make(map[entities.PairKey][]entities.AcquisitionEvent, len(acquisitions))
	skipped := 0
	for _, acquisition := range acquisitions {
		if acquisition == nil {
			skipped++
			continue
		}
		if err := acquisition.Validate(); err != nil {
			skipped++
			r.logDiscard(*acquisition, err)
			continue
		}
		next[acquisition.Key()] = append(next[acquisition.Key()], *acquisition)
	}
	for key, history := range next {
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].AcquiredAt.Before(history[j].AcquiredAt)
		})
		next[key] = history
	}

	r.mu.Lock()
	for key := range r.histories {
		if _, exists := next[key]; !exists {
			next[key] = []entities.AcquisitionEvent{}
		}
	}
	r.histories = next
	r.mu.Unlock()

	return skipped
}

// ListEvents returns a copy of the pair's history in ascending time order
func (r *EventRepository) ListEvents(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID) ([]entities.AcquisitionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.histories[entities.PairKey{Consumer: consumer, Item: item}]
	return append([]entities.AcquisitionEvent{}, history...), nil
}

// ListPairs returns every known pair sorted by consumer, then item
func (r *EventRepository) ListPairs(ctx context.Context) ([]entities.PairKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	keys := make([]entities.PairKey, 0, len(r.histories))
	for key := range r.histories {
		keys = append(keys, key)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
	return keys, nil
}

// LatestAcquisition reports the size and newest timestamp of a pair's history
func (r *EventRepository) LatestAcquisition(ctx context.Context, key entities.PairKey) (entities.Watermark, error) {
	if err := ctx.Err(); err != nil {
		return entities.Watermark{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.histories[key]
	w := entities.Watermark{EventCount: len(history)}
	if len(history) > 0 {
		w.Latest = history[len(history)-1].AcquiredAt
	}
	return w, nil
}

func (r *EventRepository) logDiscard(acquisition entities.AcquisitionEvent, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warn("data_quality_discard",
		slog.String("pair", acquisition.Key().String()),
		slog.Any("reason", err),
	)
}
