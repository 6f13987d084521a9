package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
	if cfg.StoreDriver != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.StoreDriver)
	}
	if cfg.DraftTTL != 24*time.Hour {
		t.Fatalf("expected 24h draft ttl, got %v", cfg.DraftTTL)
	}
	if cfg.SessionDefaults.WarningMinutes != 1 || cfg.SessionDefaults.SessionTimeoutMinutes != 7 {
		t.Fatalf("unexpected session defaults: %+v", cfg.SessionDefaults)
	}
}

func TestLoadConfigFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadConfigFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadConfigFromEnv_PortOverride(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "1234"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
}

func TestLoadConfigFromEnv_StoreDriver(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "STORE_DRIVER": "sqlite"}); err == nil {
		t.Fatalf("expected error without STORE_PATH")
	}
	if _, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "STORE_DRIVER": "redis", "STORE_PATH": "p"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	cfg, err := LoadConfigFromEnv(mapEnv{"MASTER_SECRET": "x", "STORE_DRIVER": "sqlite", "STORE_PATH": "/tmp/s.db"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.StoreDriver != StoreSQLite || cfg.StorePath != "/tmp/s.db" {
		t.Fatalf("unexpected store config: %q %q", cfg.StoreDriver, cfg.StorePath)
	}
}

func TestLoadConfigFromEnv_SessionThresholds(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET":           "x",
		"SESSION_WARNING_MINUTES": "2",
		"SESSION_TIMEOUT_MINUTES": "10",
		"DRAFT_TTL_HOURS":         "48",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SessionDefaults.WarningMinutes != 2 || cfg.SessionDefaults.SessionTimeoutMinutes != 10 {
		t.Fatalf("unexpected session defaults: %+v", cfg.SessionDefaults)
	}
	if cfg.DraftTTL != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", cfg.DraftTTL)
	}

	_, err = LoadConfigFromEnv(mapEnv{
		"MASTER_SECRET":           "x",
		"SESSION_WARNING_MINUTES": "7",
		"SESSION_TIMEOUT_MINUTES": "7",
	})
	if err == nil {
		t.Fatalf("expected error when warning is not shorter than timeout")
	}
}
