package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vsinha/restock/pkg/application/dto"
	"github.com/vsinha/restock/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	// Stdout receives output when OutputDir is empty (nil = os.Stdout)
	Stdout io.Writer
}

// Report is what the CLI renders: a set of estimates, optionally from a batch run
type Report struct {
	GeneratedAt time.Time
	Estimates   []entities.InventoryEstimate
	Batch       *dto.BatchResult
}

// NewBatchReport builds a report from a recompute run
func NewBatchReport(result *dto.BatchResult) Report {
	return Report{
		GeneratedAt: result.EvaluatedAt,
		Estimates:   result.Estimates(),
		Batch:       result,
	}
}

// Generate creates output in the specified format
func Generate(report Report, config Config) error {
	switch config.Format {
	case "", "text":
		return writeOutput(config, "estimates.txt", func(w io.Writer) error {
			return WriteText(w, report)
		})
	case "json":
		return writeOutput(config, "estimates.json", func(w io.Writer) error {
			return WriteJSON(w, report)
		})
	case "csv":
		return writeOutput(config, "estimates.csv", func(w io.Writer) error {
			return WriteCSV(w, report)
		})
	case "html":
		return writeOutput(config, "estimates.html", func(w io.Writer) error {
			return WriteHTML(w, report)
		})
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// writeOutput sends render to stdout, or to filename inside OutputDir
func writeOutput(config Config, filename string, render func(io.Writer) error) error {
	stdout := config.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	if config.OutputDir == "" {
		return render(stdout)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(config.OutputDir, filename)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := render(file); err != nil {
		return err
	}
	if config.Verbose {
		fmt.Fprintf(stdout, "💾 Results saved to: %s\n", path)
	}
	return file.Close()
}

// WriteText renders a human-readable table
func WriteText(w io.Writer, report Report) error {
	fmt.Fprintf(w, "📊 Inventory Estimates (%s)\n", report.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "==========================================\n\n")

	if report.Batch != nil {
		counts := report.Batch.StatusCounts()
		fmt.Fprintf(w, "Run: %s\n", report.Batch.RunID)
		fmt.Fprintf(w, "Pairs: %d of %d", len(report.Batch.Entries), report.Batch.TotalPairs)
		if report.Batch.Cancelled {
			fmt.Fprintf(w, " (cancelled)")
		}
		fmt.Fprintf(w, "\nHIGH %d  MEDIUM %d  LOW %d  CRITICAL %d  UNKNOWN %d  failures %d\n\n",
			counts[entities.StatusHigh],
			counts[entities.StatusMedium],
			counts[entities.StatusLow],
			counts[entities.StatusCritical],
			counts[entities.StatusUnknown],
			report.Batch.Failures())
	}

	if len(report.Estimates) == 0 {
		fmt.Fprintln(w, "No estimates.")
		return nil
	}

	fmt.Fprintf(w, "%-15s %-18s %-9s %-9s %-12s %-8s %-10s\n",
		"Consumer", "Item", "Status", "Remain", "Depletion", "Days", "Confidence")
	fmt.Fprintf(w, "%-15s %-18s %-9s %-9s %-12s %-8s %-10s\n",
		"---------------", "------------------", "---------", "---------", "------------", "--------", "----------")

	for _, e := range report.Estimates {
		fmt.Fprintf(w, "%-15s %-18s %-9s %-9s %-12s %-8s %-10.2f\n",
			e.Key.Consumer,
			e.Key.Item,
			e.Status,
			formatFraction(e),
			formatDepletion(e),
			formatDays(e),
			e.Confidence)
	}

	if report.Batch != nil {
		for _, entry := range report.Batch.Entries {
			if entry.Failed() {
				fmt.Fprintf(w, "⚠️  %s: %s\n", entry.Key, entry.Error)
			}
		}
	}
	return nil
}

// WriteJSON renders the report as indented JSON
func WriteJSON(w io.Writer, report Report) error {
	payload := struct {
		GeneratedAt time.Time                    `json:"generated_at"`
		Estimates   []entities.InventoryEstimate `json:"estimates"`
		Batch       *dto.BatchResult             `json:"batch,omitempty"`
	}{report.GeneratedAt, report.Estimates, report.Batch}

	if payload.Estimates == nil {
		payload.Estimates = []entities.InventoryEstimate{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"consumer_id", "item_id", "status", "fraction_remaining",
	"estimated_depletion_at", "days_remaining", "confidence", "computed_at",
}

// WriteCSV renders one row per estimate; undefined values are empty cells
func WriteCSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range report.Estimates {
		fraction, depletion, days := "", "", ""
		if e.HasFraction {
			fraction = strconv.FormatFloat(e.FractionRemaining, 'f', 4, 64)
		}
		if e.HasDepletion {
			depletion = e.EstimatedDepletionAt.UTC().Format(time.RFC3339)
			days = strconv.FormatFloat(e.DaysRemaining, 'f', 2, 64)
		}
		record := []string{
			string(e.Key.Consumer),
			string(e.Key.Item),
			e.Status.String(),
			fraction,
			depletion,
			days,
			strconv.FormatFloat(e.Confidence, 'f', 4, 64),
			e.ComputedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFraction(e entities.InventoryEstimate) string {
	if !e.HasFraction {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", e.FractionRemaining*100)
}

func formatDepletion(e entities.InventoryEstimate) string {
	if !e.HasDepletion {
		return "-"
	}
	return e.EstimatedDepletionAt.Format("2006-01-02")
}

func formatDays(e entities.InventoryEstimate) string {
	if !e.HasDepletion {
		return "-"
	}
	return fmt.Sprintf("%.1f", e.DaysRemaining)
}
