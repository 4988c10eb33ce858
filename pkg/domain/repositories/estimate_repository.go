package repositories

import (
	"context"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// EstimateRepository caches the latest profile and estimate per pair
type EstimateRepository interface {
	GetEstimate(ctx context.Context, key entities.PairKey) (entities.EstimateRecord, bool, error)
	// PutEstimate upserts the record under its profile key.
	PutEstimate(ctx context.Context, record entities.EstimateRecord) error
	ListEstimates(ctx context.Context) ([]entities.EstimateRecord, error)
}
