// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	NATSURL     string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	NATSEnabled bool   `envconfig:"NATS_ENABLED" default:"false"`

	StoreDriver string         `envconfig:"STORE_DRIVER" default:"memory"`
	Database    DatabaseConfig `envconfig:"DB"`
	BadgerDir   string         `envconfig:"BADGER_DIR" default:""`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"dev-secret"`
	JWTMaxAge time.Duration `envconfig:"JWT_MAX_AGE" default:"168h"`
	DevMode   bool          `envconfig:"DEV_MODE" default:"false"`

	MaxPlayers       int           `envconfig:"MAX_PLAYERS" default:"4"`
	PickBuffer       time.Duration `envconfig:"PICK_BUFFER" default:"1s"`
	StartExtra       time.Duration `envconfig:"START_EXTRA" default:"10s"`
	GoalAdvancements int           `envconfig:"GOAL_ADVANCEMENTS" default:"80"`
	MinRunDuration   time.Duration `envconfig:"MIN_RUN_DURATION" default:"40m"`
	Workers          int           `envconfig:"WORKERS" default:"4"`

	CatalogPath string `envconfig:"CATALOG_PATH" default:""`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// DatabaseConfig holds Postgres connection settings, read from DB_*.
type DatabaseConfig struct {
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     int    `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD" default:"postgres"`
	Name     string `envconfig:"NAME" default:"draftroom"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StorePostgres, StoreBadger:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MaxPlayers < 1 {
		return fmt.Errorf("MAX_PLAYERS must be positive, got %d", c.MaxPlayers)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
