package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vsinha/restock/pkg/application/services/estimation"
	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/domain/repositories"
	appconfig "github.com/vsinha/restock/pkg/infrastructure/config"
	"github.com/vsinha/restock/pkg/infrastructure/events"
	"github.com/vsinha/restock/pkg/infrastructure/messaging/kafka"
	"github.com/vsinha/restock/pkg/infrastructure/metrics"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/sqlite"
	"github.com/vsinha/restock/pkg/infrastructure/watch"
	"github.com/vsinha/restock/pkg/interfaces/api"
	"github.com/vsinha/restock/pkg/interfaces/cli/output"
)

// Command modes
const (
	ModeEstimate  = "estimate"
	ModeRecompute = "recompute"
	ModeServe     = "serve"
	ModeImport    = "import"
)

const shutdownTimeout = 10 * time.Second

// Config holds configuration for the restock command
type Config struct {
	Mode         string
	LedgerFile   string
	DatabasePath string
	Consumer     string
	Item         string
	At           string
	OutputDir    string
	Format       string
	Verbose      bool
	Help         bool

	// App carries the environment configuration (nil = defaults)
	App    *appconfig.Config
	Logger *slog.Logger
	// Stdout receives reports and help text (nil = os.Stdout)
	Stdout io.Writer
}

// RestockCommand handles the CLI execution logic
type RestockCommand struct {
	config Config
	app    *appconfig.Config
	logger *slog.Logger
	stdout io.Writer
}

// stores bundles the repositories chosen for one run
type stores struct {
	ledger    repositories.EventRepository
	memLedger *memory.EventRepository
	sqlLedger *sqlite.EventRepository
	estimates repositories.EstimateRepository
	db        *sqlite.DB
}

// writer is the ledger that accepts runtime acquisitions, announcing them on bus
func (s *stores) writer(bus events.Bus) repositories.AcquisitionWriter {
	if s.memLedger != nil {
		return s.memLedger.WithPublisher(bus)
	}
	if s.sqlLedger != nil {
		return s.sqlLedger.WithPublisher(bus)
	}
	return nil
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRestockCommand creates a new command with the given configuration
func NewRestockCommand(config Config) *RestockCommand {
	app := config.App
	if app == nil {
		app, _ = appconfig.Parse(map[string]string{})
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := config.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if config.LedgerFile == "" {
		config.LedgerFile = app.LedgerPath
	}
	if config.DatabasePath == "" {
		config.DatabasePath = app.DatabasePath
	}
	if config.Mode == "" {
		config.Mode = ModeRecompute
	}
	return &RestockCommand{config: config, app: app, logger: logger, stdout: stdout}
}

// Execute runs the configured mode
func (c *RestockCommand) Execute(ctx context.Context) error {
	if c.config.Help {
		c.showHelp()
		return nil
	}

	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if c.config.Mode == ModeImport {
		return c.runImport(ctx)
	}

	at, err := c.evaluationTime()
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	st, err := c.openStores(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			c.logger.Error("store_close_err", slog.Any("err", err))
		}
	}()

	switch c.config.Mode {
	case ModeEstimate:
		return c.runEstimate(ctx, st, at)
	case ModeRecompute:
		return c.runRecompute(ctx, st, at)
	default:
		return c.runServe(ctx, st)
	}
}

// validateInputs validates the command configuration
func (c *RestockCommand) validateInputs() error {
	switch c.config.Mode {
	case ModeEstimate:
		if c.config.Consumer == "" || c.config.Item == "" {
			return errors.New("estimate mode requires -consumer and -item")
		}
	case ModeRecompute, ModeServe:
	case ModeImport:
		if c.config.LedgerFile == "" || c.config.DatabasePath == "" {
			return errors.New("import mode requires both -ledger and -db")
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q (expected estimate, recompute, serve or import)", c.config.Mode)
	}

	if c.config.LedgerFile == "" && c.config.DatabasePath == "" {
		return errors.New("must specify -ledger, -db or RESTOCK_LEDGER_PATH / RESTOCK_DATABASE_PATH")
	}
	if c.config.LedgerFile != "" {
		if _, err := os.Stat(c.config.LedgerFile); err != nil {
			return fmt.Errorf("ledger file not found: %s", c.config.LedgerFile)
		}
	}
	return nil
}

// evaluationTime parses -at, defaulting to the current time
func (c *RestockCommand) evaluationTime() (time.Time, error) {
	if c.config.At == "" {
		return time.Now().UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, c.config.At)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at %q: expected RFC3339", c.config.At)
	}
	return at, nil
}

// openStores picks the ledger and estimate store.
//
// A CSV ledger is held in memory; with -db alone SQLite serves both roles,
// and with both the CSV is the ledger while estimates persist to SQLite.
func (c *RestockCommand) openStores(ctx context.Context) (*stores, error) {
	st := &stores{}

	if c.config.DatabasePath != "" {
		db, err := sqlite.New(ctx, c.config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		st.db = db
		st.estimates = sqlite.NewEstimateRepository(db)
		st.sqlLedger = sqlite.NewEventRepository(db, c.logger)
		st.ledger = st.sqlLedger
	} else {
		st.estimates = memory.NewEstimateRepository()
	}

	if c.config.LedgerFile != "" {
		if c.config.Verbose {
			fmt.Fprintf(c.stdout, "📂 Loading ledger from %s...\n", c.config.LedgerFile)
		}
		acquisitions, report, err := csv.NewLoader(c.logger).LoadAcquisitions(c.config.LedgerFile)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("error loading ledger: %w", err)
		}
		ledger := memory.NewEventRepository(len(acquisitions)).WithLogger(c.logger)
		rejected, err := ledger.LoadEvents(acquisitions)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to load acquisitions into ledger: %w", err)
		}
		if c.config.Verbose {
			fmt.Fprintf(c.stdout, "✅ Ledger loaded: %d rows, %d acquisitions, %d skipped\n\n",
				report.Rows, report.Loaded-rejected, len(report.Skipped)+rejected)
		}
		st.ledger = ledger
		st.memLedger = ledger
	}

	return st, nil
}

func (c *RestockCommand) newOrchestrator(st *stores, publisher events.Bus, m *metrics.Metrics) *estimation.Orchestrator {
	return estimation.NewOrchestratorWithConfig(estimation.OrchestratorConfig{
		Workers:   c.app.Workers,
		Publisher: publisher,
		Metrics:   m,
		Logger:    c.logger,
	}, st.ledger, st.estimates)
}

func (c *RestockCommand) outputConfig() output.Config {
	return output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Stdout:    c.stdout,
	}
}

// runEstimate evaluates a single pair
func (c *RestockCommand) runEstimate(ctx context.Context, st *stores, at time.Time) error {
	orchestrator := c.newOrchestrator(st, nil, nil)

	// An explicit -at is a what-if evaluation and leaves the store untouched.
	evaluate := orchestrator.Estimate
	if c.config.At != "" {
		evaluate = orchestrator.Preview
	}
	estimate, err := evaluate(ctx, entities.ConsumerID(c.config.Consumer), entities.ItemID(c.config.Item), at)
	if err != nil {
		return fmt.Errorf("error estimating %s/%s: %w", c.config.Consumer, c.config.Item, err)
	}

	report := output.Report{GeneratedAt: at, Estimates: []entities.InventoryEstimate{estimate}}
	if err := output.Generate(report, c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	return nil
}

// runRecompute evaluates every pair once. A cancelled run still reports its partial result.
func (c *RestockCommand) runRecompute(ctx context.Context, st *stores, at time.Time) error {
	orchestrator := c.newOrchestrator(st, nil, nil)

	if c.config.Verbose {
		fmt.Fprintf(c.stdout, "🔄 Recomputing all pairs at %s with %d workers...\n", at.Format(time.RFC3339), orchestrator.Workers())
	}

	startTime := time.Now()
	result, runErr := orchestrator.RecomputeAll(ctx, at)
	if result == nil {
		return fmt.Errorf("error recomputing estimates: %w", runErr)
	}

	if c.config.Verbose {
		fmt.Fprintf(c.stdout, "✅ Recompute completed in %v\n\n", time.Since(startTime))
	}

	if err := output.Generate(output.NewBatchReport(result), c.outputConfig()); err != nil {
		return fmt.Errorf("error generating output: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("recompute interrupted: %w", runErr)
	}
	return nil
}

// runImport copies a CSV ledger export into the SQLite ledger
func (c *RestockCommand) runImport(ctx context.Context) error {
	acquisitions, report, err := csv.NewLoader(c.logger).LoadAcquisitions(c.config.LedgerFile)
	if err != nil {
		return fmt.Errorf("error loading ledger: %w", err)
	}

	db, err := sqlite.New(ctx, c.config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	inserted, rejected, err := sqlite.NewEventRepository(db, c.logger).ImportAcquisitions(ctx, acquisitions)
	if err != nil {
		return fmt.Errorf("error importing ledger: %w", err)
	}

	fmt.Fprintf(c.stdout, "📥 Imported %d acquisitions into %s (%d rows skipped)\n",
		inserted, c.config.DatabasePath, len(report.Skipped)+rejected)
	return nil
}

// runServe runs the scheduler, the HTTP API and the optional ledger watcher
// and Kafka forwarder until ctx is done.
func (c *RestockCommand) runServe(ctx context.Context, st *stores) error {
	bus := events.NewInMemoryBus(c.logger)
	defer bus.Drain()

	m := metrics.New()
	orchestrator := c.newOrchestrator(st, bus, m)

	ingestor := st.writer(bus)
	if err := estimation.NewRefreshHandler(orchestrator, nil).Subscribe(bus); err != nil {
		return fmt.Errorf("failed to subscribe refresh handler: %w", err)
	}

	publisher, err := kafka.NewReminderPublisher(kafka.Config{
		Enabled: c.app.KafkaEnabled(),
		Topic:   c.app.KafkaTopic,
		Brokers: c.app.KafkaBrokers,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create reminder publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			c.logger.Error("reminder_publisher_close_err", slog.Any("err", err))
		}
	}()
	if c.app.KafkaEnabled() {
		if err := publisher.Subscribe(bus); err != nil {
			return fmt.Errorf("failed to subscribe reminder publisher: %w", err)
		}
	}

	scheduler := estimation.NewScheduler(orchestrator, c.app.RecomputeInterval, c.logger)

	if c.app.WatchLedger && st.memLedger != nil {
		watcher := watch.NewLedgerWatcher(c.config.LedgerFile, st.memLedger, func(*csv.LoadReport) {
			scheduler.TriggerNow()
		}, c.logger)
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				c.logger.Error("ledger_watcher_close_err", slog.Any("err", err))
			}
		}()
	}

	server := api.NewServer(orchestrator, scheduler, m.Handler(), c.logger).
		WithIngestor(ingestor).
		NewHTTPServer(c.app.HTTPAddr, c.stdout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Initial run so the API has estimates before the first tick.
		scheduler.TriggerNow()
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		c.logger.Info("http_listening", slog.String("addr", c.app.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	c.logger.Info("shutdown_complete")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// showHelp displays the help message
func (c *RestockCommand) showHelp() {
	fmt.Fprint(c.stdout, `Restock - time-based inventory estimation from acquisition history

USAGE:
    restock -mode recompute -ledger <file>                   # Estimate every pair once
    restock -mode estimate -ledger <file> -consumer C -item I
    restock -mode serve -db <file>                           # Scheduler + HTTP API
    restock -mode import -ledger <file> -db <file>           # Copy CSV into SQLite

OPTIONS:
    -mode <mode>        estimate, recompute, serve or import (default: recompute)
    -ledger <file>      CSV ledger export (held in memory)
    -db <file>          SQLite database for the ledger and/or persisted estimates
    -consumer <id>      Consumer for estimate mode
    -item <id>          Item for estimate mode
    -at <time>          Evaluation time, RFC3339 (default: now)
    -output <dir>       Output directory for results (optional)
    -format <fmt>       Output format: text, json, csv, html (default: text)
    -env <file>         Environment file to read (default: .env)
    -verbose            Enable verbose output
    -help               Show this help message

With both -ledger and -db the CSV is the ledger and estimates persist to SQLite.

ENVIRONMENT:
    RESTOCK_LEDGER_PATH          Default for -ledger
    RESTOCK_DATABASE_PATH        Default for -db
    RESTOCK_HTTP_ADDR            Listen address in serve mode (default: :8080)
    RESTOCK_RECOMPUTE_INTERVAL   Scheduler interval, 0 disables ticks (default: 1h)
    RESTOCK_WORKERS              Concurrent pair evaluations (default: GOMAXPROCS)
    RESTOCK_KAFKA_BROKERS        Comma-separated brokers; enables reorder reminders
    RESTOCK_KAFKA_TOPIC          Reminder topic (default: restock.reminders)
    RESTOCK_LOG_LEVEL            debug, info, warn, error (default: info)
    RESTOCK_LOG_FORMAT           text or json (default: text)
    RESTOCK_WATCH_LEDGER         Reload the CSV ledger when it changes (default: false)

LEDGER CSV FORMAT:
    consumer_id,item_id,quantity,purchased_at
    CLINIC_A,GLOVES_M,100,2025-01-01T00:00:00Z
    CLINIC_A,GLOVES_M,100,2025-01-11

STATUS BANDS (fraction of the expected cycle remaining):
    HIGH >= 0.70   MEDIUM >= 0.30   LOW >= 0.10   CRITICAL < 0.10
    UNKNOWN when fewer than two acquisitions are on record

EXAMPLES:
    # Status of every pair as of a given date
    restock -ledger data/ledger.csv -at 2025-02-01T00:00:00Z -verbose

    # One pair as JSON
    restock -mode estimate -ledger data/ledger.csv -consumer CLINIC_A -item GLOVES_M -format json

    # Persist estimates and write a dashboard
    restock -ledger data/ledger.csv -db data/restock.db -format html -output results/
`)
}
