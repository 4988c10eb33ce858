package testing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/memory"
)

// ErrInjected is returned by FailingLedger for the pairs it is told to fail
var ErrInjected = errors.New("injected ledger failure")

// ScenarioStart is day zero for every fixture built here
var ScenarioStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Well-known fixture pairs
var (
	GlovesPair = entities.PairKey{Consumer: "CLINIC_A", Item: "GLOVES_M"}
	MasksPair  = entities.PairKey{Consumer: "CLINIC_A", Item: "MASK_N95"}
	SwabsPair  = entities.PairKey{Consumer: "CLINIC_B", Item: "SWAB_STERILE"}
)

// AtDay returns ScenarioStart plus a fractional number of days
func AtDay(day float64) time.Time {
	return ScenarioStart.Add(entities.DaysToDuration(day))
}

// MustCreateAcquisition is a helper for tests - panics on validation error
func MustCreateAcquisition(key entities.PairKey, day float64, quantity string) *entities.AcquisitionEvent {
	acquisition, err := entities.NewAcquisitionEvent(
		key.Consumer,
		key.Item,
		decimal.RequireFromString(quantity),
		AtDay(day),
	)
	if err != nil {
		panic(err)
	}
	return acquisition
}

// History builds one acquisition of quantity 1 per day for key
func History(key entities.PairKey, days ...float64) []*entities.AcquisitionEvent {
	acquisitions := make([]*entities.AcquisitionEvent, 0, len(days))
	for _, day := range days {
		acquisitions = append(acquisitions, MustCreateAcquisition(key, day, "1"))
	}
	return acquisitions
}

// BuildClinicTestData builds the two-clinic ledger used across tests:
//   - gloves bought on day 0 and day 10 (10-day cycle)
//   - masks bought once on day 4 (insufficient history)
//   - swabs registered with no acquisitions
func BuildClinicTestData() *memory.EventRepository {
	ledger := memory.NewEventRepository(3)
	ledger.RegisterPair(SwabsPair)

	acquisitions := append(History(GlovesPair, 0, 10), MustCreateAcquisition(MasksPair, 4, "50"))
	if skipped, err := ledger.LoadEvents(acquisitions); err != nil || skipped != 0 {
		panic("clinic fixture failed to load")
	}
	return ledger
}

// FailingLedger wraps a ledger and fails reads for selected pairs
type FailingLedger struct {
	repositories.EventRepository

	mu         sync.Mutex
	failPairs  map[entities.PairKey]bool
	failList   bool
	eventCalls int
}

// NewFailingLedger wraps inner; pairs listed in failPairs return ErrInjected from ListEvents
func NewFailingLedger(inner repositories.EventRepository, failPairs ...entities.PairKey) *FailingLedger {
	fl := &FailingLedger{
		EventRepository: inner,
		failPairs:       make(map[entities.PairKey]bool, len(failPairs)),
	}
	for _, key := range failPairs {
		fl.failPairs[key] = true
	}
	return fl
}

// FailListPairs makes ListPairs return ErrInjected
func (fl *FailingLedger) FailListPairs() *FailingLedger {
	fl.failList = true
	return fl
}

func (fl *FailingLedger) ListEvents(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID) ([]entities.AcquisitionEvent, error) {
	fl.mu.Lock()
	fl.eventCalls++
	fail := fl.failPairs[entities.PairKey{Consumer: consumer, Item: item}]
	fl.mu.Unlock()

	if fail {
		return nil, ErrInjected
	}
	return fl.EventRepository.ListEvents(ctx, consumer, item)
}

func (fl *FailingLedger) ListPairs(ctx context.Context) ([]entities.PairKey, error) {
	if fl.failList {
		return nil, ErrInjected
	}
	return fl.EventRepository.ListPairs(ctx)
}

// EventCalls returns how many times ListEvents was called
func (fl *FailingLedger) EventCalls() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.eventCalls
}
