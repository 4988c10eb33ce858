package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/restock/pkg/domain/entities"
)

// acquisitionHeader is the required header of a ledger export
var acquisitionHeader = []string{"consumer_id", "item_id", "quantity", "purchased_at"}

// timestampLayouts are tried in order when parsing purchased_at
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// RowIssue describes a ledger row that was skipped for data-quality reasons
type RowIssue struct {
	Row    int
	Reason string
}

// LoadReport summarises what a load kept and skipped
type LoadReport struct {
	Rows    int
	Loaded  int
	Skipped []RowIssue
}

// Loader handles loading acquisition ledgers from CSV files
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new CSV loader. A nil logger disables data-quality logging.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadAcquisitions loads acquisition events from a CSV file.
//
// Structural problems (missing file, wrong header, wrong column count) are
// errors. Rows with an unparseable or non-positive quantity, or an
// unparseable timestamp, are skipped and reported.
func (l *Loader) LoadAcquisitions(filename string) ([]*entities.AcquisitionEvent, *LoadReport, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadAcquisitions(file)
}

// ReadAcquisitions parses a ledger export from r
func (l *Loader) ReadAcquisitions(r io.Reader) ([]*entities.AcquisitionEvent, *LoadReport, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read ledger CSV: %w", err)
	}

	if len(records) < 1 {
		return nil, nil, fmt.Errorf("ledger CSV must have a header row")
	}

	header := records[0]
	if !validateHeader(header, acquisitionHeader) {
		return nil, nil, fmt.Errorf("ledger CSV header mismatch. Expected: %v, Got: %v", acquisitionHeader, header)
	}

	report := &LoadReport{Rows: len(records) - 1}
	var acquisitions []*entities.AcquisitionEvent
	for i, record := range records[1:] {
		row := i + 2
		if len(record) != len(acquisitionHeader) {
			return nil, nil, fmt.Errorf("ledger CSV row %d: expected %d columns, got %d", row, len(acquisitionHeader), len(record))
		}

		acquisition, err := parseAcquisition(record)
		if err != nil {
			report.Skipped = append(report.Skipped, RowIssue{Row: row, Reason: err.Error()})
			l.logSkip(row, err)
			continue
		}

		acquisitions = append(acquisitions, acquisition)
	}
	report.Loaded = len(acquisitions)

	return acquisitions, report, nil
}

// WriteAcquisitions writes events in the ledger export format
func WriteAcquisitions(w io.Writer, acquisitions []entities.AcquisitionEvent) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(acquisitionHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}
	for _, a := range acquisitions {
		record := []string{
			string(a.Consumer),
			string(a.Item),
			a.Quantity.String(),
			a.AcquiredAt.UTC().Format(time.RFC3339Nano),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (l *Loader) logSkip(row int, err error) {
	if l.logger == nil {
		return
	}
	l.logger.Warn("data_quality_discard", slog.Int("row", row), slog.Any("reason", err))
}

// Helper functions for parsing CSV records

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(strings.TrimPrefix(actual[i], "\ufeff"))) != col {
			return false
		}
	}

	return true
}

func parseAcquisition(record []string) (*entities.AcquisitionEvent, error) {
	consumer := entities.ConsumerID(strings.TrimSpace(record[0]))
	item := entities.ItemID(strings.TrimSpace(record[1]))

	quantity, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %s", record[2])
	}

	acquiredAt, err := parseTimestamp(strings.TrimSpace(record[3]))
	if err != nil {
		return nil, err
	}

	return entities.NewAcquisitionEvent(consumer, item, quantity, acquiredAt)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid purchased_at format: %s (expected RFC3339 or YYYY-MM-DD)", s)
}
