// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/stoagroup/leasing-backend/internal/database"
)

func sampleRows(n int) []map[string]string {
	rows := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, map[string]string{
			"Property": "Oakmont",
			"Unit":     fmt.Sprintf("unit-%03d", i),
			"Rent":     "1250",
		})
	}
	return rows
}

func TestContentHashStable(t *testing.T) {
	rows := sampleRows(10)
	h1 := ContentHash(len(rows), rows)
	h2 := ContentHash(len(rows), sampleRows(10))
	if h1 != h2 {
		t.Errorf("identical exports produced different hashes: %s vs %s", h1, h2)
	}
	if len(h1) != 32 {
		t.Errorf("expected 32-char hash, got %d chars", len(h1))
	}
}

func TestContentHashDetectsValueChange(t *testing.T) {
	rows := sampleRows(10)
	h1 := ContentHash(len(rows), rows)

	changed := sampleRows(10)
	changed[3]["Rent"] = "1300"
	h2 := ContentHash(len(changed), changed)

	if h1 == h2 {
		t.Error("expected hash to change when a sampled row changes")
	}
}

func TestContentHashSamplesFirstRowsOnly(t *testing.T) {
	rows := sampleRows(100)
	h1 := ContentHash(len(rows), rows)

	// Changes beyond the sample window are invisible to the hash;
	// row-count comparison covers additions and removals.
	deep := sampleRows(100)
	deep[80]["Rent"] = "9999"
	h2 := ContentHash(len(deep), deep)
	if h1 != h2 {
		t.Error("expected hash unchanged for edits beyond the sample window")
	}

	// But a different row count always changes the hash.
	h3 := ContentHash(len(rows)+1, rows)
	if h1 == h3 {
		t.Error("expected hash to change with row count")
	}
}

func TestDetect(t *testing.T) {
	entry := func(count int64, hash string) *database.SyncLogEntry {
		return &database.SyncLogEntry{Dataset: "units", DataHash: hash, RowCount: count, LastSynced: time.Now(), Outcome: OutcomeSynced}
	}

	tests := []struct {
		name        string
		prev        *database.SyncLogEntry
		rowCount    int64
		hash        string
		wantChanged bool
		wantReason  string
	}{
		{"never synced", nil, 100, "abc", true, "never_synced"},
		{"row count changed", entry(100, "abc"), 101, "abc", true, "row_count_changed"},
		{"content changed", entry(100, "abc"), 100, "def", true, "content_changed"},
		{"unchanged", entry(100, "abc"), 100, "abc", false, "unchanged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.prev, tt.rowCount, tt.hash)
			if got.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", got.Changed, tt.wantChanged)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}
