package config

import (
	"testing"
	"time"
)

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("LIBRIS_AUTH_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when secret is missing")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LIBRIS_AUTH_SECRET", "test-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("unexpected addr: %s", cfg.ListenAddr)
	}
	if cfg.TokenTTL != DefaultTokenTTL {
		t.Fatalf("unexpected token ttl: %v", cfg.TokenTTL)
	}
	if cfg.LoanPeriod != DefaultLoanPeriod {
		t.Fatalf("unexpected loan period: %v", cfg.LoanPeriod)
	}
}

func TestLoadParsesSecondsAndDurations(t *testing.T) {
	t.Setenv("LIBRIS_AUTH_SECRET", "test-secret")
	t.Setenv("LIBRIS_TOKEN_TTL", "86400")
	t.Setenv("LIBRIS_STORAGE_TIMEOUT", "2s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected token ttl: %v", cfg.TokenTTL)
	}
	if cfg.StorageTimeout != 2*time.Second {
		t.Fatalf("unexpected storage timeout: %v", cfg.StorageTimeout)
	}
}
