package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c DBConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Name)
}

func (c DBConfig) validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if c.Port == "" {
		missing = append(missing, "POSTGRES_PORT")
	}
	if c.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if c.Name == "" {
		missing = append(missing, "POSTGRES_DB")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database config incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

type ReconcileConfig struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

type Config struct {
	HTTPAddr      string
	JWTSecret     string
	StorageDriver string
	LogLevel      slog.Level
	DB            DBConfig
	Reconcile     ReconcileConfig

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

// Load parses flags, falling back to environment variables for anything
// not given on the command line.
func Load(name string, args []string) (Config, error) {
	var cfg Config
	var logLevel string

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&cfg.HTTPAddr, "addr", envOr("HTTP_ADDR", "0.0.0.0:8080"), "HTTP listen address")
	fs.StringVar(&cfg.StorageDriver, "storage", envOr("STORAGE_DRIVER", DriverPostgres), "Storage driver: postgres, or memory (empty and unseeded, for tests and local smoke runs only)")
	fs.StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	fs.StringVar(&cfg.DB.Host, "db-host", os.Getenv("POSTGRES_HOST"), "Database host")
	fs.StringVar(&cfg.DB.Port, "db-port", os.Getenv("POSTGRES_PORT"), "Database port")
	fs.StringVar(&cfg.DB.User, "db-user", os.Getenv("POSTGRES_USER"), "Database user")
	fs.StringVar(&cfg.DB.Password, "db-pass", os.Getenv("POSTGRES_PASSWORD"), "Database password")
	fs.StringVar(&cfg.DB.Name, "db-name", os.Getenv("POSTGRES_DB"), "Database name")

	fs.DurationVar(&cfg.Reconcile.Interval, "reconcile-interval", 0, "Tally reconciliation interval")
	fs.DurationVar(&cfg.Reconcile.Grace, "reconcile-grace", 0, "Age before an untallied ballot is replayed")
	fs.IntVar(&cfg.Reconcile.Batch, "reconcile-batch", 0, "Ballots replayed per reconciliation cycle")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Args = fs.Args()

	// Secrets are env only.
	cfg.JWTSecret = os.Getenv("JWT_SECRET")

	var err error
	if cfg.Reconcile.Interval == 0 {
		if cfg.Reconcile.Interval, err = envDuration("RECONCILE_INTERVAL", 15*time.Second); err != nil {
			return Config{}, err
		}
	}
	if cfg.Reconcile.Grace == 0 {
		if cfg.Reconcile.Grace, err = envDuration("RECONCILE_GRACE", 30*time.Second); err != nil {
			return Config{}, err
		}
	}
	if cfg.Reconcile.Batch == 0 {
		if cfg.Reconcile.Batch, err = envInt("RECONCILE_BATCH", 100); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return Config{}, fmt.Errorf("invalid log level %q", logLevel)
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if err := cfg.DB.validate(); err != nil {
			return Config{}, err
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.Reconcile.Interval <= 0 {
		return Config{}, errors.New("reconcile interval must be positive")
	}
	if cfg.Reconcile.Grace < 0 || cfg.Reconcile.Batch < 0 {
		return Config{}, errors.New("reconcile settings must not be negative")
	}

	return cfg, nil
}

// NewLogger returns a JSON slog logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}
