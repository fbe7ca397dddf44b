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

// SaveSnapshot stores the compressed dashboard payload, replacing any
// previous snapshot. The table holds at most one row.
func (db *DB) SaveSnapshot(ctx context.Context, payload []byte, builtAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO dashboard_snapshot (id, payload, built_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, built_at = excluded.built_at`,
		payload, builtAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored compressed snapshot payload and its
// build time. The bool reports whether a snapshot exists.
func (db *DB) LoadSnapshot(ctx context.Context) ([]byte, time.Time, bool, error) {
	var payload []byte
	var builtAt time.Time
	err := db.conn.QueryRowContext(ctx,
		"SELECT payload, built_at FROM dashboard_snapshot WHERE id = 1").Scan(&payload, &builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return payload, builtAt, true, nil
}
