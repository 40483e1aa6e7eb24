package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultListenAddr     = ":8080"
	DefaultTokenTTL       = 24 * time.Hour
	DefaultLoanPeriod     = 7 * 24 * time.Hour
	DefaultStorageTimeout = 5 * time.Second
	DefaultRateBurst      = 20
	DefaultRatePerSec     = 10
)

// Config carries everything the service needs at startup. It is constructed
// once in main and passed by reference; no package-level state.
type Config struct {
	ListenAddr string

	// PostgresDSN selects the Postgres stores when non-empty; otherwise the
	// service runs on in-memory stores.
	PostgresDSN string

	// AuthSecret signs bearer tokens. Required.
	AuthSecret string

	TokenTTL       time.Duration
	LoanPeriod     time.Duration
	StorageTimeout time.Duration

	RateBurst  int
	RatePerSec int
}

var errMissingSecret = errors.New("config: LIBRIS_AUTH_SECRET is required")

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     getenv("LIBRIS_ADDR", DefaultListenAddr),
		PostgresDSN:    strings.TrimSpace(os.Getenv("LIBRIS_PG_DSN")),
		AuthSecret:     strings.TrimSpace(os.Getenv("LIBRIS_AUTH_SECRET")),
		TokenTTL:       getduration("LIBRIS_TOKEN_TTL", DefaultTokenTTL),
		LoanPeriod:     getduration("LIBRIS_LOAN_PERIOD", DefaultLoanPeriod),
		StorageTimeout: getduration("LIBRIS_STORAGE_TIMEOUT", DefaultStorageTimeout),
		RateBurst:      getint("LIBRIS_RATE_BURST", DefaultRateBurst),
		RatePerSec:     getint("LIBRIS_RATE_PER_SEC", DefaultRatePerSec),
	}
	if cfg.AuthSecret == "" {
		return nil, errMissingSecret
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.LoanPeriod <= 0 {
		cfg.LoanPeriod = DefaultLoanPeriod
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getduration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// Bare integers are treated as seconds (e.g. LIBRIS_TOKEN_TTL=86400).
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func getint(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}
