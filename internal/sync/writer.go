// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/metrics"
)

// WriterStore is the slice of the database the batch writer needs.
type WriterStore interface {
	ReplaceAll(ctx context.Context, def *dataset.Definition, records []dataset.Record) error
	UpsertByKey(ctx context.Context, def *dataset.Definition, records []dataset.Record) error
}

// WriteResult summarizes a completed batch write.
type WriteResult struct {
	Rows       int `json:"rows"`
	Chunks     int `json:"chunks"`
	Duplicates int `json:"duplicates"`
}

// Writer lands a full dataset export in chunks: the first chunk
// replaces the table wholesale, later chunks upsert by natural key,
// with a pause between chunks so the embedded database and the
// dashboard read path get breathing room during large syncs.
type Writer struct {
	store      WriterStore
	chunkSize  int
	chunkPause time.Duration
}

// NewWriter creates a batch writer.
func NewWriter(store WriterStore, chunkSize int, chunkPause time.Duration) *Writer {
	if chunkSize <= 0 {
		chunkSize = 5000
	}
	return &Writer{store: store, chunkSize: chunkSize, chunkPause: chunkPause}
}

// Write dedups the records by natural key and lands them. An empty
// record set is a valid write: it clears the table. A failed chunk
// aborts the remainder; rows from completed chunks stay in place.
func (w *Writer) Write(ctx context.Context, def *dataset.Definition, records []dataset.Record) (*WriteResult, error) {
	deduped, dupes := DedupeByKey(def, records)
	if dupes > 0 {
		logging.Warn().Str("dataset", def.Key).Int("duplicates", dupes).Msg("Duplicate natural keys in export, keeping last occurrence")
	}

	result := &WriteResult{Duplicates: dupes}

	chunks := chunkRecords(deduped, w.chunkSize)
	if len(chunks) == 0 {
		// Replace with nothing clears stale rows.
		chunks = [][]dataset.Record{{}}
	}

	for i, chunk := range chunks {
		if i > 0 {
			if err := sleepCtx(ctx, w.chunkPause); err != nil {
				return result, err
			}
		}

		var err error
		if i == 0 {
			err = w.store.ReplaceAll(ctx, def, chunk)
		} else {
			err = w.store.UpsertByKey(ctx, def, chunk)
		}
		if err != nil {
			return result, fmt.Errorf("chunk %d/%d of %s failed: %w", i+1, len(chunks), def.Key, err)
		}

		result.Rows += len(chunk)
		result.Chunks++
		metrics.SyncChunksWritten.WithLabelValues(def.Key).Inc()
		logging.Debug().Str("dataset", def.Key).Int("chunk", i+1).Int("chunks", len(chunks)).Int("rows", len(chunk)).Msg("Chunk written")
	}

	metrics.SyncRowsWritten.WithLabelValues(def.Key).Add(float64(result.Rows))
	return result, nil
}

// DedupeByKey keeps the last record for each natural key while
// preserving first-occurrence order. DuckDB rejects an upsert
// statement whose input conflicts with itself, and last-wins matches
// what sequential single-row writes would have produced. The push
// ingestion path runs the same pass before landing a chunk.
func DedupeByKey(def *dataset.Definition, records []dataset.Record) ([]dataset.Record, int) {
	index := make(map[string]int, len(records))
	deduped := make([]dataset.Record, 0, len(records))
	dupes := 0

	for _, rec := range records {
		key := def.KeyOf(rec)
		if pos, seen := index[key]; seen {
			deduped[pos] = rec
			dupes++
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, rec)
	}
	return deduped, dupes
}

func chunkRecords(records []dataset.Record, size int) [][]dataset.Record {
	if len(records) == 0 {
		return nil
	}
	chunks := make([][]dataset.Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
