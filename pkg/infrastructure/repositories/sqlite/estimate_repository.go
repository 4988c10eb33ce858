package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
)

// EstimateRepository keeps the latest estimate per pair in the estimates table
type EstimateRepository struct {
	db *DB
}

func NewEstimateRepository(db *DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

var _ repositories.EstimateRepository = (*EstimateRepository)(nil)

func (r *EstimateRepository) GetEstimate(ctx context.Context, key entities.PairKey) (entities.EstimateRecord, bool, error) {
	query := `
		SELECT profile, estimate
		FROM estimates
		WHERE consumer_id = ? AND item_id = ?
	`

	var profile, estimate string
	err := r.db.QueryRowContext(ctx, query, string(key.Consumer), string(key.Item)).Scan(&profile, &estimate)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.EstimateRecord{}, false, nil
	}
	if err != nil {
		return entities.EstimateRecord{}, false, fmt.Errorf("failed to read estimate for %s: %w", key, err)
	}

	record, err := decodeRecord(profile, estimate)
	if err != nil {
		return entities.EstimateRecord{}, false, fmt.Errorf("failed to decode estimate for %s: %w", key, err)
	}
	return record, true, nil
}

// PutEstimate upserts the record under its profile key
func (r *EstimateRepository) PutEstimate(ctx context.Context, record entities.EstimateRecord) error {
	key := record.Profile.Key
	profile, err := json.Marshal(record.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile for %s: %w", key, err)
	}
	estimate, err := json.Marshal(record.Estimate)
	if err != nil {
		return fmt.Errorf("failed to encode estimate for %s: %w", key, err)
	}

	query := `
		INSERT INTO estimates (consumer_id, item_id, status, computed_at, profile, estimate)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(consumer_id, item_id) DO UPDATE SET
			status = excluded.status,
			computed_at = excluded.computed_at,
			profile = excluded.profile,
			estimate = excluded.estimate
	`
	_, err = r.db.ExecContext(ctx, query,
		string(key.Consumer),
		string(key.Item),
		record.Estimate.Status.String(),
		formatTimestamp(record.Estimate.ComputedAt),
		string(profile),
		string(estimate),
	)
	if err != nil {
		return fmt.Errorf("failed to store estimate for %s: %w", key, err)
	}
	return nil
}

// ListEstimates returns every stored record sorted by consumer then item
func (r *EstimateRepository) ListEstimates(ctx context.Context) ([]entities.EstimateRecord, error) {
	query := `
		SELECT profile, estimate
		FROM estimates
		ORDER BY consumer_id ASC, item_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []entities.EstimateRecord
	for rows.Next() {
		var profile, estimate string
		if err := rows.Scan(&profile, &estimate); err != nil {
			return nil, fmt.Errorf("failed to scan estimate: %w", err)
		}
		record, err := decodeRecord(profile, estimate)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func decodeRecord(profile, estimate string) (entities.EstimateRecord, error) {
	var record entities.EstimateRecord
	if err := json.Unmarshal([]byte(profile), &record.Profile); err != nil {
		return record, fmt.Errorf("invalid stored profile: %w", err)
	}
	if err := json.Unmarshal([]byte(estimate), &record.Estimate); err != nil {
		return record, fmt.Errorf("invalid stored estimate: %w", err)
	}
	return record, nil
}
