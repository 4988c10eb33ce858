package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vsinha/restock/pkg/infrastructure/config"
	"github.com/vsinha/restock/pkg/infrastructure/logging"
	"github.com/vsinha/restock/pkg/interfaces/cli/commands"
)

func main() {
	// Command line flags
	var (
		mode      = flag.String("mode", commands.ModeRecompute, "Mode: estimate, recompute, serve, import")
		ledger    = flag.String("ledger", "", "Path to CSV ledger export")
		database  = flag.String("db", "", "Path to SQLite database")
		consumer  = flag.String("consumer", "", "Consumer ID for estimate mode")
		item      = flag.String("item", "", "Item ID for estimate mode")
		at        = flag.String("at", "", "Evaluation time, RFC3339 (default: now)")
		outputDir = flag.String("output", "", "Output directory for results (optional)")
		format    = flag.String("format", "text", "Output format: text, json, csv, html")
		envFile   = flag.String("env", config.DefaultEnvFile, "Environment file to read")
		verbose   = flag.Bool("verbose", false, "Enable verbose output")
		help      = flag.Bool("help", false, "Show help message")
	)

	flag.Parse()

	appConfig, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stderr, appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cmd := commands.NewRestockCommand(commands.Config{
		Mode:         *mode,
		LedgerFile:   *ledger,
		DatabasePath: *database,
		Consumer:     *consumer,
		Item:         *item,
		At:           *at,
		OutputDir:    *outputDir,
		Format:       *format,
		Verbose:      *verbose,
		Help:         *help,
		App:          appConfig,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
