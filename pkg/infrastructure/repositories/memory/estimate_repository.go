package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
)

// EstimateRepository caches estimate records in memory.
// Writes for different pairs never contend on a shared lock.
type EstimateRepository struct {
	records sync.Map // entities.PairKey -> entities.EstimateRecord
}

// NewEstimateRepository creates an empty in-memory estimate store
func NewEstimateRepository() *EstimateRepository {
	return &EstimateRepository{}
}

// Verify interface compliance
var _ repositories.EstimateRepository = (*EstimateRepository)(nil)

// GetEstimate returns a copy of the cached record for key
func (r *EstimateRepository) GetEstimate(ctx context.Context, key entities.PairKey) (entities.EstimateRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return entities.EstimateRecord{}, false, err
	}
	value, ok := r.records.Load(key)
	if !ok {
		return entities.EstimateRecord{}, false, nil
	}
	return value.(entities.EstimateRecord), true, nil
}

// PutEstimate upserts the record under its profile key
func (r *EstimateRepository) PutEstimate(ctx context.Context, record entities.EstimateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.records.Store(record.Profile.Key, record)
	return nil
}

// ListEstimates returns every cached record sorted by pair
func (r *EstimateRepository) ListEstimates(ctx context.Context) ([]entities.EstimateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []entities.EstimateRecord
	r.records.Range(func(_, value any) bool {
		records = append(records, value.(entities.EstimateRecord))
		return true
	})
	sort.Slice(records, func(i, j int) bool {
		return records[i].Profile.Key.Less(records[j].Profile.Key)
	})
	return records, nil
}
