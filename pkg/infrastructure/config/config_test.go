package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.HTTPAddr)
	}
	if cfg.RecomputeInterval != time.Hour {
		t.Errorf("Expected 1h, got %s", cfg.RecomputeInterval)
	}
	if cfg.KafkaTopic != "restock.reminders" {
		t.Errorf("Expected default topic, got %s", cfg.KafkaTopic)
	}
	if cfg.KafkaEnabled() {
		t.Error("Expected Kafka to be disabled without brokers")
	}
	if cfg.WatchLedger {
		t.Error("Expected ledger watching to be off by default")
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(map[string]string{
		"RESTOCK_LEDGER_PATH":        "/data/ledger.csv",
		"RESTOCK_RECOMPUTE_INTERVAL": "15m",
		"RESTOCK_WORKERS":            "4",
		"RESTOCK_KAFKA_BROKERS":      "kafka-1:9092, kafka-2:9092,",
		"RESTOCK_LOG_FORMAT":         "json",
		"RESTOCK_WATCH_LEDGER":       "true",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.LedgerPath != "/data/ledger.csv" {
		t.Errorf("Expected ledger path, got %s", cfg.LedgerPath)
	}
	if cfg.RecomputeInterval != 15*time.Minute || cfg.Workers != 4 {
		t.Errorf("Expected 15m / 4 workers, got %s / %d", cfg.RecomputeInterval, cfg.Workers)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("Expected 2 trimmed brokers, got %v", cfg.KafkaBrokers)
	}
	if !cfg.WatchLedger || cfg.LogFormat != "json" {
		t.Errorf("Expected watch=true format=json, got %v %s", cfg.WatchLedger, cfg.LogFormat)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		errPart string
	}{
		{"negative workers", map[string]string{"RESTOCK_WORKERS": "-1"}, "RESTOCK_WORKERS"},
		{"bad duration", map[string]string{"RESTOCK_RECOMPUTE_INTERVAL": "soon"}, "failed to parse environment"},
		{"bad level", map[string]string{"RESTOCK_LOG_LEVEL": "loud"}, "RESTOCK_LOG_LEVEL"},
		{"bad format", map[string]string{"RESTOCK_LOG_FORMAT": "xml"}, "RESTOCK_LOG_FORMAT"},
		{"brokers without topic", map[string]string{"RESTOCK_KAFKA_BROKERS": "k:9092", "RESTOCK_KAFKA_TOPIC": " "}, "RESTOCK_KAFKA_TOPIC"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.environ)
			if err == nil {
				t.Fatal("Expected error, got none")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("Expected error containing %q, got %q", tc.errPart, err.Error())
			}
		})
	}
}

func TestLoad_EnvFileAndPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "RESTOCK_LEDGER_PATH=/from/file.csv\nRESTOCK_HTTP_ADDR=:9000\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	t.Setenv("RESTOCK_HTTP_ADDR", ":7000")

	cfg, err := Load(envFile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.LedgerPath != "/from/file.csv" {
		t.Errorf("Expected ledger path from file, got %s", cfg.LedgerPath)
	}
	if cfg.HTTPAddr != ":7000" {
		t.Errorf("Expected process environment to win, got %s", cfg.HTTPAddr)
	}
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("Expected missing env file to be ignored, got %v", err)
	}
}
