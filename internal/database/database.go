// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package database wraps the embedded DuckDB store. It owns the raw
// dataset tables (one per registered dataset, keyed by each dataset's
// natural key), the per-dataset sync log, and the single-record
// dashboard snapshot table.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/logging"
)

// DB wraps the DuckDB connection.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the DuckDB database and initializes the
// schema. Use Path ":memory:" for tests.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		// 0750 per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		connStr = fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
			cfg.Path, numThreads, cfg.MaxMemory)
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an embedded single-writer engine; a small pool avoids
	// lock contention between the sync writer and dashboard reads.
	conn.SetMaxOpenConns(4)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.createTables(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Int("threads", numThreads).Msg("Database initialized")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// createTables creates all dataset tables plus the sync log and
// snapshot tables. Idempotent.
func (db *DB) createTables(ctx context.Context) error {
	for _, def := range dataset.All() {
		if _, err := db.conn.ExecContext(ctx, createTableSQL(def)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", def.Table, err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sync_log (
			dataset VARCHAR PRIMARY KEY,
			data_hash VARCHAR NOT NULL,
			row_count BIGINT NOT NULL,
			last_synced TIMESTAMP NOT NULL,
			outcome VARCHAR NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dashboard_snapshot (
			id INTEGER PRIMARY KEY,
			payload BLOB NOT NULL,
			built_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create support table: %w", err)
		}
	}
	return nil
}

// createTableSQL renders the CREATE TABLE statement for a dataset
// definition: typed columns from the registry and a composite primary
// key on the natural key.
func createTableSQL(def *dataset.Definition) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", def.Table)
	for _, col := range def.Columns {
		fmt.Fprintf(&b, "\t%s %s,\n", col.Name, col.Kind.String())
	}
	fmt.Fprintf(&b, "\tPRIMARY KEY (%s)\n)", strings.Join(def.NaturalKey, ", "))
	return b.String()
}
