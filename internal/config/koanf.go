// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/leasing-backend/config.yaml",
	"/etc/leasing-backend/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by the config file and env vars.
func Default() *Config {
	return &Config{
		Domo: DomoConfig{
			BaseURL:         "https://api.domo.com",
			DatasetIDs:      map[string]string{},
			TokenTimeout:    30 * time.Second,
			ExportTimeout:   5 * time.Minute,
			MetadataTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			ChunkSize:     5000,
			ChunkPause:    2 * time.Second,
			Interval:      0, // scheduler disabled unless configured
			WriteTimeout:  2 * time.Minute,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Snapshot: SnapshotConfig{
			DebounceWindow: 3 * time.Second,
			BuildOnStartup: false,
			BuildTimeout:   5 * time.Minute,
		},
		Database: DatabaseConfig{
			Path:      "/data/leasing.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     15 * time.Minute,
			Environment: "development",
		},
		Security: SecurityConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as strings from env vars.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names to koanf config paths.
// The DOMO_DATASET_* names match what the ops-side sync script and the
// Domo workflow already use.
var envMappings = map[string]string{
	"domo_client_id":        "domo.client_id",
	"domo_client_secret":    "domo.client_secret",
	"domo_base_url":         "domo.base_url",
	"domo_token_timeout":    "domo.token_timeout",
	"domo_export_timeout":   "domo.export_timeout",
	"domo_metadata_timeout": "domo.metadata_timeout",

	// Per-dataset Domo IDs; keys must match the dataset registry.
	"domo_dataset_leasing":     "domo.datasets.leasing",
	"domo_dataset_mmr":         "domo.datasets.MMRData",
	"domo_dataset_tradeout":    "domo.datasets.unitbyunittradeout",
	"domo_dataset_pud":         "domo.datasets.portfolioUnitDetails",
	"domo_dataset_units":       "domo.datasets.units",
	"domo_dataset_unitmix":     "domo.datasets.unitmix",
	"domo_dataset_pricing":     "domo.datasets.pricing",
	"domo_dataset_recentrents": "domo.datasets.recentrents",

	"sync_chunk_size":     "sync.chunk_size",
	"sync_chunk_pause":    "sync.chunk_pause",
	"sync_interval":       "sync.interval",
	"sync_write_timeout":  "sync.write_timeout",
	"sync_retry_attempts": "sync.retry_attempts",
	"sync_retry_delay":    "sync.retry_delay",

	"snapshot_debounce_window":  "snapshot.debounce_window",
	"snapshot_build_on_startup": "snapshot.build_on_startup",
	"snapshot_build_timeout":    "snapshot.build_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"http_host":      "server.host",
	"http_port":      "server.port",
	"http_timeout":   "server.timeout",
	"environment":    "server.environment",
	"sync_secret":    "security.sync_secret",
	"webhook_secret": "security.webhook_secret",

	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"rate_limit_disabled": "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are dropped so unrelated environment noise never
// leaks into the configuration.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
