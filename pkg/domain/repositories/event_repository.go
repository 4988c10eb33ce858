package repositories

import (
	"context"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// EventRepository provides read access to the acquisition ledger
type EventRepository interface {
	// ListEvents returns the pair's acquisitions in ascending time order.
	// An unknown pair yields an empty slice, not an error.
	ListEvents(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID) ([]entities.AcquisitionEvent, error)
	// ListPairs returns every pair the ledger knows about, sorted by consumer then item.
	ListPairs(ctx context.Context) ([]entities.PairKey, error)
}

// WatermarkReader is implemented by ledgers that can report how much history
// a pair has without returning the events themselves.
type WatermarkReader interface {
	LatestAcquisition(ctx context.Context, key entities.PairKey) (entities.Watermark, error)
}

// AcquisitionWriter records new acquisitions as they happen
type AcquisitionWriter interface {
	AppendAcquisition(ctx context.Context, acquisition entities.AcquisitionEvent) error
}
