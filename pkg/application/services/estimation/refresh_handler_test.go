package estimation

import (
	"context"
	"testing"
	"time"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/infrastructure/events"
	"github.com/vsinha/restock/pkg/infrastructure/logging"
	testhelpers "github.com/vsinha/restock/pkg/infrastructure/testing"
)

func TestRefreshHandler_RecomputesOnAcquisition(t *testing.T) {
	store := events.NewInMemoryBus(logging.Discard())
	ledger := testhelpers.BuildClinicTestData().WithPublisher(store)
	o, estimates := newTestOrchestrator(ledger, store)

	handler := NewRefreshHandler(o, func() time.Time { return testhelpers.AtDay(21) })
	if err := handler.Subscribe(store); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := ledger.Append(*testhelpers.MustCreateAcquisition(testhelpers.MasksPair, 14, "50")); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	store.Drain()

	record, found, err := estimates.GetEstimate(context.Background(), testhelpers.MasksPair)
	if err != nil || !found {
		t.Fatalf("Expected refreshed estimate, got found=%v err=%v", found, err)
	}
	if record.Profile.SampleCount != 2 {
		t.Errorf("Expected 2 samples, got %d", record.Profile.SampleCount)
	}
	// 10-day cycle, 7 days since the last purchase
	if record.Estimate.Status != entities.StatusMedium {
		t.Errorf("Expected MEDIUM, got %s", record.Estimate.Status)
	}
}

func TestRefreshHandler_RejectsForeignPayload(t *testing.T) {
	o, _ := newTestOrchestrator(testhelpers.BuildClinicTestData(), nil)
	handler := NewRefreshHandler(o, nil)

	if handler.CanHandle(events.StatusTransitionedEvent) {
		t.Error("Expected handler to ignore status transitions")
	}
	event := events.NewEvent(events.AcquisitionRecordedEvent, "x/y", "not an acquisition", testhelpers.AtDay(0))
	if err := handler.Handle(event); err == nil {
		t.Error("Expected error for unexpected payload")
	}
}
