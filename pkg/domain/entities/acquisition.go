package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ConsumerID identifies the party that acquires items
type ConsumerID string

// ItemID identifies a purchasable item
type ItemID string

// PairKey identifies one (consumer, item) history
type PairKey struct {
	Consumer ConsumerID `json:"consumer_id"`
	Item     ItemID     `json:"item_id"`
}

// String renders the key as consumer/item
func (k PairKey) String() string {
	return fmt.Sprintf("%s/%s", k.Consumer, k.Item)
}

// Less orders keys by consumer, then item
func (k PairKey) Less(other PairKey) bool {
	if k.Consumer != other.Consumer {
		return k.Consumer < other.Consumer
	}
	return k.Item < other.Item
}

// AcquisitionEvent is a recorded purchase of an item by a consumer
type AcquisitionEvent struct {
	Consumer   ConsumerID      `json:"consumer_id"`
	Item       ItemID          `json:"item_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	AcquiredAt time.Time       `json:"purchased_at"`
}

// NewAcquisitionEvent creates a validated AcquisitionEvent
func NewAcquisitionEvent(consumer ConsumerID, item ItemID, quantity decimal.Decimal, acquiredAt time.Time) (*AcquisitionEvent, error) {
	event := &AcquisitionEvent{
		Consumer:   consumer,
		Item:       item,
		Quantity:   quantity,
		AcquiredAt: acquiredAt,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// Key returns the pair this event belongs to
func (e AcquisitionEvent) Key() PairKey {
	return PairKey{Consumer: e.Consumer, Item: e.Item}
}

// Validate reports the first data-quality problem with the event
func (e AcquisitionEvent) Validate() error {
	if string(e.Consumer) == "" {
		return fmt.Errorf("consumer id cannot be empty")
	}
	if string(e.Item) == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if err := e.ValidateMeasurement(); err != nil {
		return err
	}
	return nil
}

// ValidateMeasurement checks only the quantity and timestamp
func (e AcquisitionEvent) ValidateMeasurement() error {
	if !e.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", e.Quantity.String())
	}
	if e.AcquiredAt.IsZero() {
		return fmt.Errorf("acquisition timestamp cannot be zero")
	}
	return nil
}
