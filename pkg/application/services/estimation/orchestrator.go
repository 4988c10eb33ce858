package estimation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vsinha/restock/pkg/application/dto"
	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
	"github.com/vsinha/restock/pkg/domain/services"
	"github.com/vsinha/restock/pkg/infrastructure/events"
	"github.com/vsinha/restock/pkg/infrastructure/metrics"
)

// ErrLedgerUnavailable is returned when a recompute run cannot enumerate pairs.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// OrchestratorConfig holds the optional collaborators of an Orchestrator
type OrchestratorConfig struct {
	// Workers bounds concurrent pair evaluations in RecomputeAll (0 = GOMAXPROCS)
	Workers int
	// Publisher receives estimate.computed and status.transitioned events (nil = none)
	Publisher events.Bus
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// Clock stamps run start and finish times (nil = time.Now)
	Clock func() time.Time
}

// Orchestrator coordinates the ledger, the estimation pipeline and the estimate store
type Orchestrator struct {
	ledger    repositories.EventRepository
	estimates repositories.EstimateRepository
	estimator *services.CycleEstimator
	decay     *services.DecayModel
	publisher events.Bus
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time
	workers   int
}

// NewOrchestrator creates an orchestrator with default configuration
func NewOrchestrator(ledger repositories.EventRepository, estimates repositories.EstimateRepository) *Orchestrator {
	return NewOrchestratorWithConfig(OrchestratorConfig{}, ledger, estimates)
}

// NewOrchestratorWithConfig creates an orchestrator with custom configuration
func NewOrchestratorWithConfig(
	config OrchestratorConfig,
	ledger repositories.EventRepository,
	estimates repositories.EstimateRepository,
) *Orchestrator {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Orchestrator{
		ledger:    ledger,
		estimates: estimates,
		estimator: services.NewCycleEstimator(logger),
		decay:     services.NewDecayModel(),
		publisher: config.Publisher,
		metrics:   config.Metrics,
		logger:    logger.With(slog.String("component", "orchestrator")),
		clock:     clock,
		workers:   workers,
	}
}

// Workers returns the batch concurrency limit
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Estimate evaluates one pair at now.
//
// The cached profile is reused while the ledger watermark for the pair is
// unchanged. The resulting record is upserted and a status.transitioned event
// is published when the pair enters LOW or CRITICAL. An evaluation older than
// the stored one, or one for a pair the ledger does not know, is returned
// without being stored or published.
func (o *Orchestrator) Estimate(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID, now time.Time) (entities.InventoryEstimate, error) {
	key := entities.PairKey{Consumer: consumer, Item: item}

	previous, found, err := o.estimates.GetEstimate(ctx, key)
	if err != nil {
		o.logger.Warn("estimate_cache_err", slog.String("pair", key.String()), slog.Any("err", err))
		found = false
	}

	profile, hit, err := o.profileFor(ctx, key, previous, found)
	if err != nil {
		return entities.UnknownEstimate(key, now), fmt.Errorf("failed to read ledger for %s: %w", key, err)
	}
	o.metrics.ObserveProfileCache(hit)

	if found && now.Before(previous.Estimate.ComputedAt) {
		return o.preview(profile, now), nil
	}
	if !found && profile.Watermark.EventCount == 0 {
		known, err := o.knowsPair(ctx, key)
		if err != nil {
			return entities.UnknownEstimate(key, now), fmt.Errorf("failed to read ledger for %s: %w", key, err)
		}
		if !known {
			return o.preview(profile, now), nil
		}
	}

	return o.evaluate(ctx, profile, previous, found, now)
}

// Preview evaluates one pair at an arbitrary instant without storing the
// result or publishing events.
func (o *Orchestrator) Preview(ctx context.Context, consumer entities.ConsumerID, item entities.ItemID, at time.Time) (entities.InventoryEstimate, error) {
	key := entities.PairKey{Consumer: consumer, Item: item}

	previous, found, err := o.estimates.GetEstimate(ctx, key)
	if err != nil {
		o.logger.Warn("estimate_cache_err", slog.String("pair", key.String()), slog.Any("err", err))
		found = false
	}

	profile, _, err := o.profileFor(ctx, key, previous, found)
	if err != nil {
		return entities.UnknownEstimate(key, at), fmt.Errorf("failed to read ledger for %s: %w", key, err)
	}
	return o.preview(profile, at), nil
}

func (o *Orchestrator) preview(profile entities.CycleProfile, at time.Time) entities.InventoryEstimate {
	return services.BuildEstimate(profile.Key, o.decay.Evaluate(profile, at), at)
}

// knowsPair reports whether key is one of the ledger's pairs
func (o *Orchestrator) knowsPair(ctx context.Context, key entities.PairKey) (bool, error) {
	pairs, err := o.ledger.ListPairs(ctx)
	if err != nil {
		return false, err
	}
	for _, pair := range pairs {
		if pair == key {
			return true, nil
		}
	}
	return false, nil
}

// profileFor returns the cached profile if the ledger has not moved, or a rebuilt one
func (o *Orchestrator) profileFor(ctx context.Context, key entities.PairKey, previous entities.EstimateRecord, found bool) (entities.CycleProfile, bool, error) {
	if reader, ok := o.ledger.(repositories.WatermarkReader); ok && found {
		watermark, err := reader.LatestAcquisition(ctx, key)
		if err != nil {
			return entities.CycleProfile{}, false, err
		}
		if previous.Profile.Watermark.Equal(watermark) {
			return previous.Profile, true, nil
		}
	}

	history, err := o.ledger.ListEvents(ctx, key.Consumer, key.Item)
	if err != nil {
		return entities.CycleProfile{}, false, err
	}
	if found && previous.Profile.Watermark.Equal(services.WatermarkOf(history)) {
		return previous.Profile, true, nil
	}

	return o.buildProfile(key, history), false, nil
}

func (o *Orchestrator) buildProfile(key entities.PairKey, history []entities.AcquisitionEvent) entities.CycleProfile {
	profile := o.estimator.BuildProfile(key, history)
	o.metrics.AddDataQualityDiscards(profile.DiscardedEvents)
	return profile
}

// evaluate runs the decay model, stores the record and publishes status events
func (o *Orchestrator) evaluate(
	ctx context.Context,
	profile entities.CycleProfile,
	previous entities.EstimateRecord,
	found bool,
	now time.Time,
) (entities.InventoryEstimate, error) {
	estimate := o.preview(profile, now)
	o.metrics.ObserveEstimate(estimate.Status)

	if err := o.estimates.PutEstimate(ctx, entities.EstimateRecord{Profile: profile, Estimate: estimate}); err != nil {
		return estimate, err
	}

	from := entities.StatusUnknown
	if found {
		from = previous.Estimate.Status
	}
	o.publishStatus(from, estimate)

	return estimate, nil
}

func (o *Orchestrator) publishStatus(from entities.StockStatus, estimate entities.InventoryEstimate) {
	if from == estimate.Status {
		return
	}
	o.publish(events.NewEstimateComputedEvent(estimate))

	if !estimate.Status.NeedsReorder() {
		return
	}
	transition := entities.StatusTransition{
		Key:        estimate.Key,
		From:       from,
		To:         estimate.Status,
		Estimate:   estimate,
		OccurredAt: estimate.ComputedAt,
	}
	o.metrics.IncTransition(estimate.Status)
	o.logger.Info("status_transition",
		slog.String("pair", estimate.Key.String()),
		slog.String("from", from.String()),
		slog.String("to", estimate.Status.String()),
	)
	o.publish(events.NewStatusTransitionedEvent(transition))
}

func (o *Orchestrator) publish(event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(event); err != nil {
		o.logger.Warn("event_publish_err", slog.String("type", event.Type()), slog.Any("err", err))
	}
}

// RecomputeAll rebuilds and re-evaluates every pair the ledger knows about.
//
// Pairs are evaluated concurrently, bounded by the worker limit. A pair whose
// ledger read fails yields an UNKNOWN entry carrying the error; only a failure
// to enumerate pairs fails the run. When ctx is cancelled no new pairs are
// started, pairs already running complete, and the partial result is returned
// together with the context error.
func (o *Orchestrator) RecomputeAll(ctx context.Context, now time.Time) (*dto.BatchResult, error) {
	result := &dto.BatchResult{
		RunID:       uuid.New(),
		EvaluatedAt: now,
		StartedAt:   o.clock(),
	}
	logger := o.logger.With(slog.String("run_id", result.RunID.String()))

	pairs, err := o.ledger.ListPairs(ctx)
	if err != nil {
		o.metrics.IncBatchFailure()
		logger.Error("batch_failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	result.TotalPairs = len(pairs)
	logger.Info("batch_started", slog.Int("pairs", len(pairs)), slog.Int("workers", o.workers))

	// Each slot is written by exactly one goroutine.
	entries := make([]dto.PairResult, len(pairs))
	started := make([]bool, len(pairs))

	// Started pairs run to completion even if ctx is cancelled mid-run.
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, key := range pairs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// The slot may have been granted after cancellation.
			if ctx.Err() != nil {
				return nil
			}
			started[i] = true
			entries[i] = o.recomputePair(workCtx, logger, key, now)
			return nil
		})
	}
	_ = g.Wait()

	result.Entries = make([]dto.PairResult, 0, len(pairs))
	for i, entry := range entries {
		if started[i] {
			result.Entries = append(result.Entries, entry)
		}
	}
	result.FinishedAt = o.clock()

	if len(result.Entries) < len(pairs) {
		result.Cancelled = true
		logger.Warn("batch_cancelled",
			slog.Int("completed", len(result.Entries)),
			slog.Int("pairs", len(pairs)),
		)
		return result, ctx.Err()
	}

	o.metrics.ObserveBatch(len(pairs), result.Duration(), result.FinishedAt)
	logger.Info("batch_finished",
		slog.Int("pairs", len(pairs)),
		slog.Int("failures", result.Failures()),
		slog.Duration("took", result.Duration()),
	)
	return result, nil
}

// recomputePair always rebuilds the profile from the full history
func (o *Orchestrator) recomputePair(ctx context.Context, logger *slog.Logger, key entities.PairKey, now time.Time) dto.PairResult {
	history, err := o.ledger.ListEvents(ctx, key.Consumer, key.Item)
	if err != nil {
		o.metrics.IncPairFailure()
		logger.Warn("pair_failed", slog.String("pair", key.String()), slog.Any("err", err))
		return dto.PairResult{
			Key:      key,
			Estimate: entities.UnknownEstimate(key, now),
			Error:    fmt.Sprintf("failed to read ledger for %s: %v", key, err),
		}
	}

	previous, found, err := o.estimates.GetEstimate(ctx, key)
	if err != nil {
		logger.Warn("estimate_cache_err", slog.String("pair", key.String()), slog.Any("err", err))
		found = false
	}

	estimate, err := o.evaluate(ctx, o.buildProfile(key, history), previous, found, now)
	if err != nil {
		logger.Warn("estimate_store_err", slog.String("pair", key.String()), slog.Any("err", err))
		return dto.PairResult{Key: key, Estimate: estimate, Error: err.Error()}
	}
	return dto.PairResult{Key: key, Estimate: estimate}
}

// ListEstimates returns every stored estimate in pair order
func (o *Orchestrator) ListEstimates(ctx context.Context) ([]entities.EstimateRecord, error) {
	records, err := o.estimates.ListEstimates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	return records, nil
}
