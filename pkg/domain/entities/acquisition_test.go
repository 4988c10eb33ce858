package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAcquisitionEvent_Validation(t *testing.T) {
	acquiredAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	valid, err := NewAcquisitionEvent("CLINIC_A", "GLOVES_M", decimal.NewFromFloat(2.5), acquiredAt)
	if err != nil {
		t.Fatalf("Expected valid event creation to succeed: %v", err)
	}
	if valid.Key() != (PairKey{Consumer: "CLINIC_A", Item: "GLOVES_M"}) {
		t.Errorf("Expected key CLINIC_A/GLOVES_M, got %s", valid.Key())
	}

	testCases := []struct {
		name        string
		consumer    ConsumerID
		item        ItemID
		quantity    decimal.Decimal
		acquiredAt  time.Time
		expectError string
	}{
		{"empty consumer", "", "GLOVES_M", decimal.NewFromInt(1), acquiredAt, "consumer id cannot be empty"},
		{"empty item", "CLINIC_A", "", decimal.NewFromInt(1), acquiredAt, "item id cannot be empty"},
		{"zero quantity", "CLINIC_A", "GLOVES_M", decimal.Zero, acquiredAt, "quantity must be positive, got 0"},
		{"negative quantity", "CLINIC_A", "GLOVES_M", decimal.NewFromInt(-5), acquiredAt, "quantity must be positive, got -5"},
		{"zero timestamp", "CLINIC_A", "GLOVES_M", decimal.NewFromInt(1), time.Time{}, "acquisition timestamp cannot be zero"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAcquisitionEvent(tc.consumer, tc.item, tc.quantity, tc.acquiredAt)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestPairKey_Less(t *testing.T) {
	a := PairKey{Consumer: "A", Item: "Z"}
	b := PairKey{Consumer: "B", Item: "A"}
	c := PairKey{Consumer: "B", Item: "B"}

	if !a.Less(b) || !b.Less(c) || c.Less(a) {
		t.Error("Expected keys to order by consumer, then item")
	}
}

func TestStockStatus_TextRoundTrip(t *testing.T) {
	payload, err := json.Marshal(map[string]StockStatus{"status": StatusLow})
	if err != nil {
		t.Fatalf("Failed to marshal status: %v", err)
	}
	if string(payload) != `{"status":"LOW"}` {
		t.Errorf("Expected status encoded by name, got %s", payload)
	}

	var decoded map[string]StockStatus
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if decoded["status"] != StatusLow {
		t.Errorf("Expected LOW, got %s", decoded["status"])
	}

	if _, err := ParseStockStatus("EMPTY"); err == nil {
		t.Error("Expected error for unknown status name")
	}
}
