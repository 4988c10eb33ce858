package estimation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vsinha/restock/pkg/application/dto"
)

// Recomputer runs a full recompute at an evaluation time
type Recomputer interface {
	RecomputeAll(ctx context.Context, now time.Time) (*dto.BatchResult, error)
}

// Scheduler runs recomputes on an interval and on demand
type Scheduler struct {
	recomputer Recomputer
	interval   time.Duration
	clock      func() time.Time
	logger     *slog.Logger
	trigger    chan struct{}

	mu      sync.RWMutex
	last    *dto.BatchResult
	lastErr error
	runs    int
}

// NewScheduler creates a scheduler. A non-positive interval disables ticking,
// leaving only TriggerNow and RunOnce.
func NewScheduler(recomputer Recomputer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		recomputer: recomputer,
		interval:   interval,
		clock:      time.Now,
		logger:     logger.With(slog.String("component", "scheduler")),
		trigger:    make(chan struct{}, 1),
	}
}

// WithClock sets the source of evaluation times
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

// Run blocks, recomputing on every tick and trigger, until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var ticks <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	s.logger.Info("scheduler_started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler_stopped")
			return ctx.Err()
		case <-ticks:
			_, _ = s.RunOnce(ctx)
		case <-s.trigger:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// TriggerNow requests an immediate run without blocking.
// It returns false if a requested run is already pending.
func (s *Scheduler) TriggerNow() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs a recompute synchronously and records its outcome
func (s *Scheduler) RunOnce(ctx context.Context) (*dto.BatchResult, error) {
	result, err := s.recomputer.RecomputeAll(ctx, s.clock())
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduled_run_failed", slog.Any("err", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastErr = err
	if result != nil {
		s.last = result
	}
	return result, err
}

// Last returns the most recent batch result and the error of the most recent run
func (s *Scheduler) Last() (*dto.BatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

// Runs returns how many runs have been attempted
func (s *Scheduler) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}
