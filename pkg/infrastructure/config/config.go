// Package config loads runtime configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/vsinha/restock/pkg/infrastructure/logging"
)

// Config holds the application configuration.
type Config struct {
	LedgerPath        string        `env:"RESTOCK_LEDGER_PATH"`
	DatabasePath      string        `env:"RESTOCK_DATABASE_PATH"`
	HTTPAddr          string        `env:"RESTOCK_HTTP_ADDR"          envDefault:":8080"`
	RecomputeInterval time.Duration `env:"RESTOCK_RECOMPUTE_INTERVAL" envDefault:"1h"`
	Workers           int           `env:"RESTOCK_WORKERS"            envDefault:"0"`
	KafkaBrokers      []string      `env:"RESTOCK_KAFKA_BROKERS"      envSeparator:","`
	KafkaTopic        string        `env:"RESTOCK_KAFKA_TOPIC"        envDefault:"restock.reminders"`
	LogLevel          string        `env:"RESTOCK_LOG_LEVEL"          envDefault:"info"`
	LogFormat         string        `env:"RESTOCK_LOG_FORMAT"         envDefault:"text"`
	WatchLedger       bool          `env:"RESTOCK_WATCH_LEDGER"       envDefault:"false"`
}

// DefaultEnvFile is read by Load when no other file is given
const DefaultEnvFile = ".env"

// Load reads envFile (if it exists) and the process environment.
// Variables already set in the process take precedence over the file.
func Load(envFile string) (*Config, error) {
	environ := make(map[string]string)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			fileVars, err := godotenv.Read(envFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
			}
			for k, v := range fileVars {
				environ[k] = v
			}
		}
	}

	for k, v := range env.ToMap(os.Environ()) {
		environ[k] = v
	}

	return Parse(environ)
}

// Parse builds a Config from an explicit variable set and validates it
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that env parsing cannot
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("RESTOCK_WORKERS must not be negative, got %d", c.Workers))
	}
	if c.RecomputeInterval < 0 {
		errs = append(errs, fmt.Errorf("RESTOCK_RECOMPUTE_INTERVAL must not be negative, got %s", c.RecomputeInterval))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("RESTOCK_LOG_LEVEL: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("RESTOCK_LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if c.KafkaEnabled() && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("RESTOCK_KAFKA_TOPIC must be set when brokers are configured"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled reports whether reminders should be forwarded to Kafka
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
