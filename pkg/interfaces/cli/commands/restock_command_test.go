package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsinha/restock/pkg/domain/entities"
	"github.com/vsinha/restock/pkg/infrastructure/logging"
	"github.com/vsinha/restock/pkg/infrastructure/repositories/sqlite"
)

const ledgerCSV = `consumer_id,item_id,quantity,purchased_at
CLINIC_A,GLOVES_M,100,2025-01-01T00:00:00Z
CLINIC_A,GLOVES_M,100,2025-01-11T00:00:00Z
CLINIC_A,MASK_N95,20,2025-01-05T00:00:00Z
CLINIC_A,MASK_N95,0,2025-01-06T00:00:00Z
`

func writeLedger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte(ledgerCSV), 0o600); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}
	return path
}

type jsonReport struct {
	Estimates []entities.InventoryEstimate `json:"estimates"`
}

func runJSON(t *testing.T, config Config) jsonReport {
	t.Helper()
	var buf bytes.Buffer
	config.Format = "json"
	config.Stdout = &buf
	config.Logger = logging.Discard()

	if err := NewRestockCommand(config).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var report jsonReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("Output is not valid JSON: %v\n%s", err, buf.String())
	}
	return report
}

func TestRestockCommand_Recompute(t *testing.T) {
	report := runJSON(t, Config{
		Mode:       ModeRecompute,
		LedgerFile: writeLedger(t),
		At:         "2025-01-16T00:00:00Z",
	})

	if len(report.Estimates) != 2 {
		t.Fatalf("Expected 2 estimates, got %d", len(report.Estimates))
	}
	byItem := map[entities.ItemID]entities.InventoryEstimate{}
	for _, e := range report.Estimates {
		byItem[e.Key.Item] = e
	}
	if got := byItem["GLOVES_M"].Status; got != entities.StatusMedium {
		t.Errorf("Expected GLOVES_M MEDIUM, got %s", got)
	}
	if got := byItem["MASK_N95"].Status; got != entities.StatusUnknown {
		t.Errorf("Expected MASK_N95 UNKNOWN, got %s", got)
	}
}

func TestRestockCommand_EstimateSinglePair(t *testing.T) {
	report := runJSON(t, Config{
		Mode:       ModeEstimate,
		LedgerFile: writeLedger(t),
		Consumer:   "CLINIC_A",
		Item:       "GLOVES_M",
		At:         "2025-01-20T00:00:00Z",
	})

	if len(report.Estimates) != 1 {
		t.Fatalf("Expected 1 estimate, got %d", len(report.Estimates))
	}
	estimate := report.Estimates[0]
	if estimate.Status != entities.StatusLow {
		t.Errorf("Expected LOW at day 19, got %s", estimate.Status)
	}
	if !estimate.HasDepletion || estimate.DaysRemaining != 1 {
		t.Errorf("Expected 1 day remaining, got %v (defined=%v)", estimate.DaysRemaining, estimate.HasDepletion)
	}
}

func TestRestockCommand_EstimateAtDoesNotPersist(t *testing.T) {
	ledger := writeLedger(t)
	dbPath := filepath.Join(t.TempDir(), "restock.db")

	storedCount := func() int {
		t.Helper()
		db, err := sqlite.New(context.Background(), dbPath)
		if err != nil {
			t.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		records, err := sqlite.NewEstimateRepository(db).ListEstimates(context.Background())
		if err != nil {
			t.Fatalf("Failed to list estimates: %v", err)
		}
		return len(records)
	}

	runJSON(t, Config{
		Mode:         ModeEstimate,
		LedgerFile:   ledger,
		DatabasePath: dbPath,
		Consumer:     "CLINIC_A",
		Item:         "GLOVES_M",
		At:           "2025-01-20T00:00:00Z",
	})
	if got := storedCount(); got != 0 {
		t.Fatalf("Expected what-if estimate to leave the store empty, got %d records", got)
	}

	runJSON(t, Config{
		Mode:         ModeEstimate,
		LedgerFile:   ledger,
		DatabasePath: dbPath,
		Consumer:     "CLINIC_A",
		Item:         "GLOVES_M",
	})
	if got := storedCount(); got != 1 {
		t.Errorf("Expected current estimate to be stored, got %d records", got)
	}
}

func TestRestockCommand_ImportThenRecomputeFromDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restock.db")

	var buf bytes.Buffer
	importCmd := NewRestockCommand(Config{
		Mode:         ModeImport,
		LedgerFile:   writeLedger(t),
		DatabasePath: dbPath,
		Stdout:       &buf,
		Logger:       logging.Discard(),
	})
	if err := importCmd.Execute(context.Background()); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Imported 3 acquisitions") {
		t.Errorf("Expected 3 imported acquisitions, got %q", buf.String())
	}

	report := runJSON(t, Config{
		Mode:         ModeRecompute,
		DatabasePath: dbPath,
		At:           "2025-01-16T00:00:00Z",
	})
	if len(report.Estimates) != 2 {
		t.Fatalf("Expected 2 estimates from database ledger, got %d", len(report.Estimates))
	}
}

func TestRestockCommand_Validation(t *testing.T) {
	ledger := writeLedger(t)

	tests := []struct {
		name    string
		config  Config
		errPart string
	}{
		{"no inputs", Config{Mode: ModeRecompute}, "must specify"},
		{"unknown mode", Config{Mode: "plan", LedgerFile: ledger}, "unknown mode"},
		{"estimate without pair", Config{Mode: ModeEstimate, LedgerFile: ledger}, "-consumer and -item"},
		{"import without db", Config{Mode: ModeImport, LedgerFile: ledger}, "both -ledger and -db"},
		{"missing ledger", Config{Mode: ModeRecompute, LedgerFile: filepath.Join(t.TempDir(), "nope.csv")}, "not found"},
		{"bad at", Config{Mode: ModeRecompute, LedgerFile: ledger, At: "yesterday"}, "RFC3339"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.config.Logger = logging.Discard()
			tc.config.Stdout = &bytes.Buffer{}
			err := NewRestockCommand(tc.config).Execute(context.Background())
			if err == nil {
				t.Fatal("Expected error, got none")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("Expected error containing %q, got %q", tc.errPart, err.Error())
			}
		})
	}
}

func TestRestockCommand_Help(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRestockCommand(Config{Help: true, Stdout: &buf}).Execute(context.Background()); err != nil {
		t.Fatalf("Help failed: %v", err)
	}
	if !strings.Contains(buf.String(), "USAGE:") {
		t.Error("Expected usage text")
	}
}
