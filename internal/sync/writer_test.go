// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stoagroup/leasing-backend/internal/dataset"
)

// fakeWriterStore records writer calls and keeps an in-memory table
// keyed by natural key.
type fakeWriterStore struct {
	calls     []string // "replace" or "upsert"
	rows      map[string]dataset.Record
	failCall  int // 1-based call index to fail on, 0 = never
	callCount int
}

func newFakeWriterStore() *fakeWriterStore {
	return &fakeWriterStore{rows: make(map[string]dataset.Record)}
}

func (s *fakeWriterStore) ReplaceAll(_ context.Context, def *dataset.Definition, records []dataset.Record) error {
	s.callCount++
	if s.failCall == s.callCount {
		return errors.New("simulated write failure")
	}
	s.calls = append(s.calls, "replace")
	s.rows = make(map[string]dataset.Record)
	for _, rec := range records {
		s.rows[def.KeyOf(rec)] = rec
	}
	return nil
}

func (s *fakeWriterStore) UpsertByKey(_ context.Context, def *dataset.Definition, records []dataset.Record) error {
	s.callCount++
	if s.failCall == s.callCount {
		return errors.New("simulated write failure")
	}
	s.calls = append(s.calls, "upsert")
	for _, rec := range records {
		s.rows[def.KeyOf(rec)] = rec
	}
	return nil
}

func unitRec(property, unit string, sqft int64) dataset.Record {
	return dataset.Record{
		"property":  property,
		"unit":      unit,
		"floorplan": "A1",
		"bedrooms":  int64(2),
		"bathrooms": 2.0,
		"sqft":      sqft,
	}
}

func mustDef(t *testing.T, key string) *dataset.Definition {
	t.Helper()
	def, ok := dataset.ByKey(key)
	if !ok {
		t.Fatalf("dataset %s not registered", key)
	}
	return def
}

func TestWriteChunksReplaceThenUpsert(t *testing.T) {
	store := newFakeWriterStore()
	w := NewWriter(store, 5, 0)
	def := mustDef(t, "units")

	records := make([]dataset.Record, 0, 12)
	for i := 0; i < 12; i++ {
		records = append(records, unitRec("Oakmont", fmt.Sprintf("u%02d", i), 850))
	}

	result, err := w.Write(context.Background(), def, records)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result.Chunks != 3 || result.Rows != 12 {
		t.Errorf("expected 3 chunks / 12 rows, got %d / %d", result.Chunks, result.Rows)
	}

	want := []string{"replace", "upsert", "upsert"}
	if len(store.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, store.calls)
	}
	for i, call := range want {
		if store.calls[i] != call {
			t.Errorf("call %d: expected %s, got %s", i, call, store.calls[i])
		}
	}
	if len(store.rows) != 12 {
		t.Errorf("expected 12 stored rows, got %d", len(store.rows))
	}
}

func TestWriteDedupsByKeyLastWins(t *testing.T) {
	store := newFakeWriterStore()
	w := NewWriter(store, 100, 0)
	def := mustDef(t, "units")

	records := []dataset.Record{
		unitRec("Oakmont", "101", 850),
		unitRec("Oakmont", "102", 850),
		unitRec("Oakmont", "101", 900), // duplicate key, later value
		unitRec("Oakmont", "103", 1100),
		unitRec("Oakmont", "102", 925), // duplicate key, later value
	}

	result, err := w.Write(context.Background(), def, records)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result.Rows != 3 {
		t.Errorf("expected 3 rows after dedup, got %d", result.Rows)
	}
	if result.Duplicates != 2 {
		t.Errorf("expected 2 duplicates, got %d", result.Duplicates)
	}

	key := def.KeyOf(unitRec("Oakmont", "101", 0))
	if got := store.rows[key]["sqft"]; got != int64(900) {
		t.Errorf("expected last-wins sqft 900 for unit 101, got %v", got)
	}
}

func TestWriteManyDuplicatesConvergeToKeyCount(t *testing.T) {
	store := newFakeWriterStore()
	w := NewWriter(store, 200, 0)
	def := mustDef(t, "units")

	// 1101 input rows over 76 distinct keys must land exactly 76 rows.
	records := make([]dataset.Record, 0, 1101)
	for i := 0; i < 1101; i++ {
		records = append(records, unitRec("Oakmont", fmt.Sprintf("u%02d", i%76), int64(800+i)))
	}

	result, err := w.Write(context.Background(), def, records)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result.Rows != 76 {
		t.Errorf("expected 76 rows, got %d", result.Rows)
	}
	if len(store.rows) != 76 {
		t.Errorf("expected 76 stored rows, got %d", len(store.rows))
	}
}

func TestWriteEmptyExportClearsTable(t *testing.T) {
	store := newFakeWriterStore()
	store.rows["stale"] = unitRec("Oakmont", "999", 1)
	w := NewWriter(store, 5, 0)
	def := mustDef(t, "units")

	result, err := w.Write(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if result.Chunks != 1 || result.Rows != 0 {
		t.Errorf("expected 1 empty replace chunk, got %d chunks / %d rows", result.Chunks, result.Rows)
	}
	if len(store.rows) != 0 {
		t.Errorf("expected table cleared, got %d rows", len(store.rows))
	}
}

func TestWriteAbortsOnChunkFailure(t *testing.T) {
	store := newFakeWriterStore()
	store.failCall = 2
	w := NewWriter(store, 5, 0)
	def := mustDef(t, "units")

	records := make([]dataset.Record, 0, 15)
	for i := 0; i < 15; i++ {
		records = append(records, unitRec("Oakmont", fmt.Sprintf("u%02d", i), 850))
	}

	result, err := w.Write(context.Background(), def, records)
	if err == nil {
		t.Fatal("expected chunk failure to surface")
	}
	if result.Chunks != 1 {
		t.Errorf("expected 1 committed chunk before abort, got %d", result.Chunks)
	}
	// Third chunk never attempted.
	if store.callCount != 2 {
		t.Errorf("expected 2 store calls, got %d", store.callCount)
	}
}

func TestWriteStopsOnCancelledContext(t *testing.T) {
	store := newFakeWriterStore()
	w := NewWriter(store, 5, time.Minute) // long pause so only cancellation can finish the wait

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := make([]dataset.Record, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, unitRec("Oakmont", fmt.Sprintf("u%02d", i), 850))
	}

	_, err := w.Write(ctx, mustDef(t, "units"), records)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
