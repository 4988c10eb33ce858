// Package watch reloads a CSV ledger export whenever the file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/csv"
)

// DefaultDebounce coalesces the burst of events editors emit for one save
const DefaultDebounce = 100 * time.Millisecond

// Ledger is the store a reload is swapped into
type Ledger interface {
	Replace(acquisitions []*entities.AcquisitionEvent) int
}

// ReloadFunc is called after every successful reload
type ReloadFunc func(report *csv.LoadReport)

// LedgerWatcher keeps a ledger in sync with a CSV file
type LedgerWatcher struct {
	path     string
	loader   *csv.Loader
	ledger   Ledger
	onReload ReloadFunc
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewLedgerWatcher creates a watcher for path. onReload may be nil.
func NewLedgerWatcher(path string, ledger Ledger, onReload ReloadFunc, logger *slog.Logger) *LedgerWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "ledger_watcher"))
	return &LedgerWatcher{
		path:     path,
		loader:   csv.NewLoader(logger),
		ledger:   ledger,
		onReload: onReload,
		logger:   logger,
		debounce: DefaultDebounce,
	}
}

// WithDebounce overrides the debounce interval
func (w *LedgerWatcher) WithDebounce(d time.Duration) *LedgerWatcher {
	w.debounce = d
	return w
}

// Reload reads the file and swaps its contents into the ledger
func (w *LedgerWatcher) Reload() (*csv.LoadReport, error) {
	acquisitions, report, err := w.loader.LoadAcquisitions(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload ledger: %w", err)
	}
	rejected := w.ledger.Replace(acquisitions)

	w.logger.Info("ledger_reloaded",
		slog.String("path", w.path),
		slog.Int("loaded", report.Loaded-rejected),
		slog.Int("skipped", len(report.Skipped)+rejected),
	)
	if w.onReload != nil {
		w.onReload(report)
	}
	return report, nil
}

// Start watches the file's directory until ctx is done or Close is called.
func (w *LedgerWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory so atomic renames and re-creation are seen.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			w.logger.Error("watcher_close_err", slog.Any("err", closeErr))
		}
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx, watcher)
	return nil
}

func (w *LedgerWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				w.stopTimer()
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				w.stopTimer()
				return
			}
			w.logger.Error("watcher_err", slog.Any("err", err))
		}
	}
}

func (w *LedgerWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if _, err := w.Reload(); err != nil {
			w.logger.Error("ledger_reload_err", slog.Any("err", err))
		}
	})
}

func (w *LedgerWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops watching and waits for the watch loop to exit
func (w *LedgerWatcher) Close() error {
	w.mu.Lock()
	watcher, done := w.watcher, w.done
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	if errors.Is(err, fsnotify.ErrClosed) {
		return nil
	}
	return err
}
