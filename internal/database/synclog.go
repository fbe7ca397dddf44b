// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SyncLogEntry records the outcome of the most recent sync attempt
// for one dataset. The change detector compares the stored row count
// and content hash against fresh upstream values.
type SyncLogEntry struct {
	Dataset    string    `json:"dataset"`
	DataHash   string    `json:"data_hash"`
	RowCount   int64     `json:"row_count"`
	LastSynced time.Time `json:"last_synced"`
	Outcome    string    `json:"outcome"`
}

// GetSyncLog returns the sync log entry for a dataset, or nil if the
// dataset has never been synced.
func (db *DB) GetSyncLog(ctx context.Context, datasetKey string) (*SyncLogEntry, error) {
	var e SyncLogEntry
	err := db.conn.QueryRowContext(ctx,
		"SELECT dataset, data_hash, row_count, last_synced, outcome FROM sync_log WHERE dataset = ?",
		datasetKey,
	).Scan(&e.Dataset, &e.DataHash, &e.RowCount, &e.LastSynced, &e.Outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync log for %s: %w", datasetKey, err)
	}
	return &e, nil
}

// PutSyncLog writes or replaces the sync log entry for a dataset.
func (db *DB) PutSyncLog(ctx context.Context, e *SyncLogEntry) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_log (dataset, data_hash, row_count, last_synced, outcome)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (dataset) DO UPDATE SET
			data_hash = excluded.data_hash,
			row_count = excluded.row_count,
			last_synced = excluded.last_synced,
			outcome = excluded.outcome`,
		e.Dataset, e.DataHash, e.RowCount, e.LastSynced, e.Outcome)
	if err != nil {
		return fmt.Errorf("failed to write sync log for %s: %w", e.Dataset, err)
	}
	return nil
}

// AllSyncLogs returns every sync log entry ordered by dataset key.
func (db *DB) AllSyncLogs(ctx context.Context) ([]SyncLogEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT dataset, data_hash, row_count, last_synced, outcome FROM sync_log ORDER BY dataset")
	if err != nil {
		return nil, fmt.Errorf("failed to read sync log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		if err := rows.Scan(&e.Dataset, &e.DataHash, &e.RowCount, &e.LastSynced, &e.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan sync log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
