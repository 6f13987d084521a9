package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"studio-session/internal/model"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

type Config struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	LogLevel     string

	StoreDriver string
	StorePath   string
	DraftTTL    time.Duration

	// ConfigURL serves the session thresholds; empty means use SessionDefaults.
	ConfigURL       string
	ActivitySyncURL string
	SessionDefaults model.SessionWarningConfig
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:            3000,
		GinMode:         "release",
		TokenExpiry:     7 * 24 * time.Hour,
		LogLevel:        "info",
		StoreDriver:     StoreMemory,
		DraftTTL:        24 * time.Hour,
		SessionDefaults: model.DefaultSessionWarningConfig(),
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}

	if raw := env.Getenv("STORE_DRIVER"); raw != "" {
		switch raw {
		case StoreMemory, StoreFile, StoreSQLite:
			cfg.StoreDriver = raw
		default:
			return Config{}, fmt.Errorf("invalid STORE_DRIVER %q", raw)
		}
	}
	cfg.StorePath = env.Getenv("STORE_PATH")
	if cfg.StoreDriver != StoreMemory && cfg.StorePath == "" {
		return Config{}, fmt.Errorf("STORE_PATH is required for STORE_DRIVER=%s", cfg.StoreDriver)
	}

	if raw := env.Getenv("DRAFT_TTL_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("invalid DRAFT_TTL_HOURS")
		}
		cfg.DraftTTL = time.Duration(hours) * time.Hour
	}

	cfg.ConfigURL = env.Getenv("CONFIG_URL")
	cfg.ActivitySyncURL = env.Getenv("ACTIVITY_SYNC_URL")

	if raw := env.Getenv("SESSION_WARNING_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_WARNING_MINUTES")
		}
		cfg.SessionDefaults.WarningMinutes = minutes
	}
	if raw := env.Getenv("SESSION_TIMEOUT_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return Config{}, fmt.Errorf("invalid SESSION_TIMEOUT_MINUTES")
		}
		cfg.SessionDefaults.SessionTimeoutMinutes = minutes
	}
	if cfg.SessionDefaults.WarningMinutes >= cfg.SessionDefaults.SessionTimeoutMinutes {
		return Config{}, fmt.Errorf("SESSION_WARNING_MINUTES must be less than SESSION_TIMEOUT_MINUTES")
	}

	return cfg, nil
}
