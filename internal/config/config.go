// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package config loads and validates application configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root application configuration.
type Config struct {
	Domo     DomoConfig     `koanf:"domo"`
	Sync     SyncConfig     `koanf:"sync"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DomoConfig holds upstream Domo API settings.
type DomoConfig struct {
	// ClientID and ClientSecret are exchanged for an access token via
	// the OAuth client-credentials grant.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	// BaseURL is the Domo API root.
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// DatasetIDs maps dataset keys (leasing, MMRData, ...) to Domo
	// dataset IDs. Only configured datasets are synced.
	DatasetIDs map[string]string `koanf:"datasets"`

	// TokenTimeout bounds the OAuth token exchange.
	TokenTimeout time.Duration `koanf:"token_timeout" validate:"min=1s"`

	// ExportTimeout bounds a full dataset export. Exports can exceed
	// hundreds of thousands of rows, so this is measured in minutes.
	ExportTimeout time.Duration `koanf:"export_timeout" validate:"min=1s"`

	// MetadataTimeout bounds the row-count metadata call.
	MetadataTimeout time.Duration `koanf:"metadata_timeout" validate:"min=1s"`
}

// SyncConfig holds batched sync tuning.
type SyncConfig struct {
	// ChunkSize is the number of rows written per batch.
	ChunkSize int `koanf:"chunk_size" validate:"min=1"`

	// ChunkPause is the deliberate pause between batch writes so a
	// large sync does not saturate the store. Zero skips the pause.
	ChunkPause time.Duration `koanf:"chunk_pause" validate:"min=0"`

	// Interval enables the built-in scheduler when non-zero: a full
	// sync pass runs every Interval.
	Interval time.Duration `koanf:"interval" validate:"min=0"`

	// WriteTimeout bounds a single batch write against the store.
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=1s"`

	// RetryAttempts and RetryDelay control upstream fetch retries.
	RetryAttempts int           `koanf:"retry_attempts" validate:"min=1"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"min=0"`
}

// SnapshotConfig holds dashboard snapshot rebuild settings.
type SnapshotConfig struct {
	// DebounceWindow collapses rebuild signals arriving within the
	// window into a single trailing build.
	DebounceWindow time.Duration `koanf:"debounce_window" validate:"min=0"`

	// BuildOnStartup forces a snapshot build when the process starts.
	BuildOnStartup bool `koanf:"build_on_startup"`

	// BuildTimeout bounds a single snapshot build.
	BuildTimeout time.Duration `koanf:"build_timeout" validate:"min=1s"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path, or :memory: for tests.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is DuckDB's memory limit (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 uses runtime.NumCPU().
	Threads int `koanf:"threads" validate:"min=0"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// Timeout is the read/write timeout for request handling. Sync
	// requests can run for minutes, so write timeouts are generous.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	Environment string `koanf:"environment" validate:"oneof=development production"`
}

// SecurityConfig holds auth and rate limiting settings.
type SecurityConfig struct {
	// SyncSecret is the shared secret required on all mutating
	// endpoints (X-Sync-Secret header or Bearer token). Empty disables
	// the check; production validation rejects that.
	SyncSecret string `koanf:"sync_secret"`

	// WebhookSecret verifies the HMAC signature on Domo-originated
	// webhook triggers. Empty accepts unsigned webhooks.
	WebhookSecret string `koanf:"webhook_secret"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for consistency. Struct tags cover
// ranges; the checks below cover cross-field rules that tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Server.Environment == "production" && c.Security.SyncSecret == "" {
		return fmt.Errorf("security.sync_secret is required in production")
	}
	if len(c.Security.SyncSecret) > 0 && len(c.Security.SyncSecret) < 16 {
		return fmt.Errorf("security.sync_secret must be at least 16 characters")
	}

	if c.Domo.ClientID != "" && c.Domo.ClientSecret == "" {
		return fmt.Errorf("domo.client_secret is required when domo.client_id is set")
	}

	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
