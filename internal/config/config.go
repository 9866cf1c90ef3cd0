// Package config loads greybooks.yaml plus optional .env overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level greybooks.yaml configuration.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Retry    RetryConfig    `yaml:"retry"`
}

// BusinessConfig identifies the business entity.
type BusinessConfig struct {
	Name string `yaml:"name"`
}

// StorageConfig selects and configures the backing store.
type StorageConfig struct {
	// Backend is one of "csv", "postgres" or "memory".
	Backend string `yaml:"backend"`
	// BooksDir is the root directory for the csv backend.
	BooksDir string `yaml:"books_dir"`
	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// EventsConfig configures the outbound event publisher.
type EventsConfig struct {
	// KafkaBrokers enables the Kafka publisher when non-empty; otherwise
	// events go to the structured log.
	KafkaBrokers []string `yaml:"kafka_brokers,omitempty"`
}

// RetryConfig controls transient-failure retries in the consistency
// supervisor.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
}

// Load reads a greybooks.yaml file from disk and applies environment
// overrides. A .env file next to the config is honored if present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Best-effort .env: secrets like the DSN live outside the yaml.
	_ = godotenv.Load()
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GREYBOOKS_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("GREYBOOKS_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("GREYBOOKS_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.Attempts = n
		}
	}
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new books directory.
func Default(businessName, booksDir string) *Config {
	return &Config{
		Business: BusinessConfig{Name: businessName},
		Storage: StorageConfig{
			Backend:  "csv",
			BooksDir: booksDir,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 50 * time.Millisecond,
		},
	}
}
