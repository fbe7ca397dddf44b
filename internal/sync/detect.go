// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package sync implements the Domo-to-database sync pipeline: change
// detection, the chunked batch writer, the per-dataset orchestrator,
// and the sequential multi-dataset coordinator.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/goccy/go-json"

	"github.com/stoagroup/leasing-backend/internal/database"
)

// hashSampleRows bounds how many rows feed the content hash. Hashing
// the full export of a 300k-row dataset buys nothing: the row count
// already covers additions and removals, and edits overwhelmingly
// touch recent rows, which Domo exports first.
const hashSampleRows = 50

// ContentHash produces a stable 32-hex-char digest over the export's
// row count and its first rows. Each sampled row is serialized with
// sorted keys so map ordering cannot perturb the digest.
//
// The digest is local to this service. A hash recorded by the push
// endpoint comes from the client's own serialization, so the first
// pull after a push sees content_changed and re-validates the dataset
// with a full write; hashes align from then on.
func ContentHash(rowCount int, rows []map[string]string) string {
	sample := rows
	if len(sample) > hashSampleRows {
		sample = sample[:hashSampleRows]
	}

	serialized := make([]string, 0, len(sample))
	for _, row := range sample {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		ordered := make([][2]string, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, [2]string{k, row[k]})
		}
		b, _ := json.Marshal(ordered)
		serialized = append(serialized, string(b))
	}

	h := sha256.New()
	countJSON, _ := json.Marshal(rowCount)
	h.Write(countJSON)
	sampleJSON, _ := json.Marshal(serialized)
	h.Write(sampleJSON)

	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Decision is the change detector's verdict for one dataset.
type Decision struct {
	Changed bool
	Reason  string
}

// Detect compares the stored sync log entry against the fresh
// export's row count and content hash. A dataset with no log entry is
// always considered changed.
func Detect(prev *database.SyncLogEntry, rowCount int64, hash string) Decision {
	switch {
	case prev == nil:
		return Decision{Changed: true, Reason: "never_synced"}
	case prev.RowCount != rowCount:
		return Decision{Changed: true, Reason: "row_count_changed"}
	case prev.DataHash != hash:
		return Decision{Changed: true, Reason: "content_changed"}
	default:
		return Decision{Changed: false, Reason: "unchanged"}
	}
}
