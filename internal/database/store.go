// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/logging"
)

// insertBatchSize bounds the number of rows per INSERT statement so
// placeholder counts stay reasonable for wide datasets.
const insertBatchSize = 500

// ReplaceAll deletes every row in the dataset's table and inserts the
// given records, atomically. Used for the first chunk of a sync so a
// shrunken upstream dataset cannot leave stale rows behind.
func (db *DB) ReplaceAll(ctx context.Context, def *dataset.Definition, records []dataset.Record) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+def.Table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", def.Table, err)
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		query, args := insertSQL(def, batch, false)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", def.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace of %s: %w", def.Table, err)
	}
	return nil
}

// UpsertByKey inserts the given records, updating non-key columns in
// place when a row with the same natural key already exists. Callers
// must have deduplicated records by natural key: DuckDB rejects a
// statement that conflicts with itself.
func (db *DB) UpsertByKey(ctx context.Context, def *dataset.Definition, records []dataset.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		query, args := insertSQL(def, batch, true)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert into %s: %w", def.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert of %s: %w", def.Table, err)
	}
	return nil
}

// insertSQL renders a multi-row INSERT for a batch, optionally with an
// ON CONFLICT upsert clause targeting the natural key.
func insertSQL(def *dataset.Definition, batch []dataset.Record, upsert bool) (string, []any) {
	cols := def.ColumnNames()

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", def.Table, strings.Join(cols, ", "))

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	args := make([]any, 0, len(batch)*len(cols))
	for i, rec := range batch {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rowPlaceholder)
		for _, col := range cols {
			args = append(args, rec[col])
		}
	}

	if upsert {
		key := make(map[string]bool, len(def.NaturalKey))
		for _, k := range def.NaturalKey {
			key[k] = true
		}
		var sets []string
		for _, col := range cols {
			if !key[col] {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
			}
		}
		fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(def.NaturalKey, ", "), strings.Join(sets, ", "))
	}

	return b.String(), args
}

// Count returns the number of rows in a dataset's table.
func (db *DB) Count(ctx context.Context, table string) (int64, error) {
	if _, ok := dataset.ByTable(table); !ok {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var count int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// Wipe clears a single dataset's table and its sync log entry, so the
// next sync treats the dataset as never synced.
func (db *DB) Wipe(ctx context.Context, table string) error {
	def, ok := dataset.ByTable(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+def.Table); err != nil {
		return fmt.Errorf("failed to wipe %s: %w", def.Table, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_log WHERE dataset = ?", def.Key); err != nil {
		return fmt.Errorf("failed to clear sync log for %s: %w", def.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe of %s: %w", def.Table, err)
	}
	logging.Info().Str("table", def.Table).Msg("Table wiped")
	return nil
}

// WipeAll clears every dataset table, the full sync log, and the
// stored snapshot.
func (db *DB) WipeAll(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, def := range dataset.All() {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+def.Table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", def.Table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sync_log"); err != nil {
		return fmt.Errorf("failed to clear sync log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dashboard_snapshot"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit full wipe: %w", err)
	}
	logging.Warn().Msg("All dataset tables wiped")
	return nil
}

// SelectRows runs a read-only query and returns generic rows keyed by
// column name. The snapshot builder and the column diagnostics
// endpoint use this for table scans.
func (db *DB) SelectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
