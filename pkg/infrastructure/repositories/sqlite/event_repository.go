package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
	"github.com/vsinha/restock/pkg/infrastructure/events"
)

// EventRepository is an acquisition ledger stored in the acquisitions table
type EventRepository struct {
	db        *DB
	logger    *slog.Logger
	publisher events.Bus
}

// NewEventRepository creates a ledger over db. A nil logger disables data-quality logging.
func NewEventRepository(db *DB, logger *slog.Logger) *EventRepository {
	return &EventRepository{db: db, logger: logger}
}

var (
	_ repositories.EventRepository   = (*EventRepository)(nil)
	_ repositories.WatermarkReader   = (*EventRepository)(nil)
	_ repositories.AcquisitionWriter = (*EventRepository)(nil)
)

// WithPublisher announces every appended acquisition on bus
func (r *EventRepository) WithPublisher(bus events.Bus) *EventRepository {
	r.publisher = bus
	return r
}

// AppendAcquisition validates and stores a single acquisition
func (r *EventRepository) AppendAcquisition(ctx context.Context, acquisition entities.AcquisitionEvent) error {
	if err := acquisition.Validate(); err != nil {
		return fmt.Errorf("invalid acquisition for %s: %w", acquisition.Key(), err)
	}
	_, err := r.db.ExecContext(ctx, insertAcquisitionSQL,
		string(acquisition.Consumer),
		string(acquisition.Item),
		acquisition.Quantity.String(),
		formatTimestamp(acquisition.AcquiredAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert acquisition for %s: %w", acquisition.Key(), err)
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(events.NewAcquisitionRecordedEvent(acquisition)); err != nil && r.logger != nil {
			r.logger.Warn("acquisition_publish_err", slog.String("pair", acquisition.Key().String()), slog.Any("err", err))
		}
	}
	return nil
}

const insertAcquisitionSQL = `
	INSERT INTO acquisitions (consumer_id, item_id, quantity, purchased_at)
	VALUES (?, ?, ?, ?)
`

// ImportAcquisitions stores every valid acquisition in one transaction and
// returns how many were inserted and how many were skipped as invalid.
func (r *EventRepository) ImportAcquisitions(ctx context.Context, acquisitions []*entities.AcquisitionEvent) (int, int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertAcquisitionSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to prepare import: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted, skipped := 0, 0
	for _, acquisition := range acquisitions {
		if acquisition == nil {
			skipped++
			continue
		}
		if err := acquisition.Validate(); err != nil {
			skipped++
			if r.logger != nil {
				r.logger.Warn("data_quality_discard",
					slog.String("pair", acquisition.Key().String()),
					slog.Any("reason", err),
				)
			}
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			string(acquisition.Consumer),
			string(acquisition.Item),
			acquisition.Quantity.String(),
			formatTimestamp(acquisition.AcquiredAt),
		); err != nil {
			return 0, 0, fmt.Errorf("failed to import acquisition for %s: %w", acquisition.Key(), err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return inserted, skipped, nil
}

// ListEvents returns the pair's acquisitions in ascending time order
func (r *EventRepository) ListEvents(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID) ([]entities.AcquisitionEvent, error) {
	query := `
		SELECT quantity, purchased_at
		FROM acquisitions
		WHERE consumer_id = ? AND item_id = ?
		ORDER BY purchased_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(consumer), string(item))
	if err != nil {
		return nil, fmt.Errorf("failed to query acquisitions for %s/%s: %w", consumer, item, err)
	}
	defer func() { _ = rows.Close() }()

	events := []entities.AcquisitionEvent{}
	for rows.Next() {
		var quantity, purchasedAt string
		if err := rows.Scan(&quantity, &purchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan acquisition: %w", err)
		}

		q, err := decimal.NewFromString(quantity)
		if err != nil {
			return nil, fmt.Errorf("invalid stored quantity %q: %w", quantity, err)
		}
		at, err := parseTimestamp(purchasedAt)
		if err != nil {
			return nil, err
		}

		events = append(events, entities.AcquisitionEvent{
			Consumer:   consumer,
			Item:       item,
			Quantity:   q,
			AcquiredAt: at,
		})
	}

	return events, rows.Err()
}

// ListPairs returns every distinct pair, sorted by consumer then item
func (r *EventRepository) ListPairs(ctx context.Context) ([]entities.PairKey, error) {
	query := `
		SELECT DISTINCT consumer_id, item_id
		FROM acquisitions
		ORDER BY consumer_id ASC, item_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []entities.PairKey
	for rows.Next() {
		var consumer, item string
		if err := rows.Scan(&consumer, &item); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		pairs = append(pairs, entities.PairKey{
			Consumer: entities.ConsumerID(consumer),
			Item:     entities.ItemID(item),
		})
	}

	return pairs, rows.Err()
}

// LatestAcquisition reports the event count and newest timestamp for a pair
func (r *EventRepository) LatestAcquisition(ctx context.Context, key entities.PairKey) (entities.Watermark, error) {
	query := `
		SELECT COUNT(*), MAX(purchased_at)
		FROM acquisitions
		WHERE consumer_id = ? AND item_id = ?
	`

	var count int
	var latest sql.NullString
	if err := r.db.QueryRowContext(ctx, query, string(key.Consumer), string(key.Item)).Scan(&count, &latest); err != nil {
		return entities.Watermark{}, fmt.Errorf("failed to read watermark for %s: %w", key, err)
	}

	watermark := entities.Watermark{EventCount: count}
	if latest.Valid {
		at, err := parseTimestamp(latest.String)
		if err != nil {
			return entities.Watermark{}, err
		}
		watermark.Latest = at
	}
	return watermark, nil
}
