package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"library-circulation/library"
	"library-circulation/store"
)

// DefaultPath is read when Load is given no path. A missing default file is
// not an error; defaults and the environment still apply.
const DefaultPath = "library.yaml"

// Config is the application configuration, loaded from YAML and overridden
// by environment variables (a .env file in the working directory is read first).
type Config struct {
	StoreBackend    string          `yaml:"storeBackend"`
	DBPath          string          `yaml:"dbPath"`
	RedisAddr       string          `yaml:"redisAddr"`
	RedisPassword   string          `yaml:"redisPassword"`
	RedisPrefix     string          `yaml:"redisPrefix"`
	LogLevel        string          `yaml:"logLevel"`
	FinePerDay      decimal.Decimal `yaml:"finePerDay"`
	DefaultLoanDays int             `yaml:"defaultLoanDays"`
	MaxBooksPerUser int             `yaml:"maxBooksPerUser"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	p := library.DefaultPolicy()
	return Config{
		StoreBackend:    store.BackendSQLite,
		DBPath:          "library.db",
		RedisPrefix:     "library",
		LogLevel:        "info",
		FinePerDay:      p.FinePerDay,
		DefaultLoanDays: p.DefaultLoanDays,
		MaxBooksPerUser: p.BorrowLimit,
	}
}

// Load reads config from path (defaults to library.yaml).
func Load(path string) (Config, error) {
	cfg := Default()
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LIBRARY_STORE"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("LIBRARY_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LIBRARY_REDIS_PREFIX"); v != "" {
		cfg.RedisPrefix = v
	}
	if v := os.Getenv("LIBRARY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LIBRARY_FINE_PER_DAY"); v != "" {
		f, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("config: invalid LIBRARY_FINE_PER_DAY %q: %w", v, err)
		}
		cfg.FinePerDay = f
	}
	if v := os.Getenv("LIBRARY_DEFAULT_LOAN_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid LIBRARY_DEFAULT_LOAN_DAYS %q: %w", v, err)
		}
		cfg.DefaultLoanDays = n
	}
	if v := os.Getenv("LIBRARY_MAX_BOOKS_PER_USER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid LIBRARY_MAX_BOOKS_PER_USER %q: %w", v, err)
		}
		cfg.MaxBooksPerUser = n
	}
	return nil
}

// Validate rejects settings the library cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case store.BackendSQLite:
		if c.DBPath == "" {
			return errors.New("config: dbPath is required for the sqlite store")
		}
	case store.BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis store (set in library.yaml or REDIS_ADDR)")
		}
	case store.BackendMemory:
	default:
		return fmt.Errorf("config: unknown storeBackend %q", c.StoreBackend)
	}
	if !c.FinePerDay.IsPositive() {
		return errors.New("config: finePerDay must be positive")
	}
	if c.DefaultLoanDays <= 0 {
		return errors.New("config: defaultLoanDays must be positive")
	}
	if c.MaxBooksPerUser <= 0 {
		return errors.New("config: maxBooksPerUser must be positive")
	}
	return nil
}

// Policy returns the circulation rules configured for the library.
func (c Config) Policy() library.Policy {
	return library.Policy{
		FinePerDay:      c.FinePerDay,
		DefaultLoanDays: c.DefaultLoanDays,
		BorrowLimit:     c.MaxBooksPerUser,
	}
}

// StoreOptions returns the options for store.Open.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Backend:       strings.ToLower(c.StoreBackend),
		Path:          c.DBPath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisPrefix:   c.RedisPrefix,
	}
}
