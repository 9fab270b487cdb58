package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds credentials from the environment plus tunables from the
// optional config.toml. Credentials are required; the daemon refuses to
// start without them.
type Config struct {
	APIID         int
	APIHash       string
	StringSession string
	OwnUserID     int64
	LogChatID     int64 // alert DM destination; 0 = own saved messages
	WebhookURL    string

	Tunables
}

// Tunables are the optional knobs read from <data dir>/config.toml.
type Tunables struct {
	WatchdogIntervalSeconds int `toml:"watchdog_interval_seconds"`
	WebhookTimeoutSeconds   int `toml:"webhook_timeout_seconds"`
	HistoryPageSize         int `toml:"history_page_size"`
}

// Load reads credentials from the environment. A .env file in the
// working directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIHash:       os.Getenv("TG_API_HASH"),
		StringSession: os.Getenv("TG_STRING_SESSION"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		Tunables: Tunables{
			WatchdogIntervalSeconds: 300,
			WebhookTimeoutSeconds:   5,
			HistoryPageSize:         100,
		},
	}

	if v := os.Getenv("TG_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("TG_API_ID must be an integer: %w", err)
		}
		cfg.APIID = id
	}
	if v := os.Getenv("OWN_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("OWN_USER_ID must be an integer: %w", err)
		}
		cfg.OwnUserID = id
	}
	if v := os.Getenv("LOG_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("LOG_CHAT_ID must be an integer: %w", err)
		}
		cfg.LogChatID = id
	}

	if cfg.APIID == 0 {
		return nil, fmt.Errorf("TG_API_ID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("TG_API_HASH is required")
	}
	if cfg.StringSession == "" {
		return nil, fmt.Errorf("TG_STRING_SESSION is required")
	}
	if cfg.OwnUserID == 0 {
		return nil, fmt.Errorf("OWN_USER_ID is required")
	}

	return cfg, nil
}

// LoadTunables overlays values from the given TOML file onto the
// defaults. A missing file keeps the defaults and is not an error.
func (c *Config) LoadTunables(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, &c.Tunables); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if c.WatchdogIntervalSeconds <= 0 {
		return fmt.Errorf("watchdog_interval_seconds must be positive")
	}
	if c.WebhookTimeoutSeconds <= 0 {
		return fmt.Errorf("webhook_timeout_seconds must be positive")
	}
	if c.HistoryPageSize <= 0 {
		return fmt.Errorf("history_page_size must be positive")
	}
	return nil
}

// WatchdogInterval returns the reconciliation sweep interval.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.WatchdogIntervalSeconds) * time.Second
}

// WebhookTimeout returns the per-request webhook timeout.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}
