// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/stoagroup/leasing-backend/internal/database"
	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/sync"
)

// Chunking headers on the push endpoint. A large export arrives as a
// series of requests; the first chunk replaces the table, the rest
// upsert into it, and the last chunk commits the sync log entry.
const (
	headerFirstChunk = "X-Leasing-Sync-First-Chunk"
	headerLastChunk  = "X-Leasing-Sync-Last-Chunk"
	headerTotalRows  = "X-Leasing-Sync-Total-Rows"
	headerDataHash   = "X-Leasing-Sync-Data-Hash"
)

// maxPushBody caps a single push chunk at 64 MiB.
const maxPushBody = 64 << 20

// pushResult reports what one dataset's chunk did.
type pushResult struct {
	Dataset   string `json:"dataset"`
	Rows      int    `json:"rows"`
	Action    string `json:"action"`
	Committed bool   `json:"committed"`
}

// PushSync ingests rows pushed by an external ETL job. The body maps
// dataset keys to arrays of raw string rows, exactly as Domo exports
// them.
func (h *Handler) PushSync(w http.ResponseWriter, r *http.Request) {
	first := headerBool(r, headerFirstChunk, true)
	last := headerBool(r, headerLastChunk, true)

	var body map[string][]map[string]string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPushBody))
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "request body must map dataset keys to row arrays", err)
		return
	}
	if len(body) == 0 {
		respondError(w, http.StatusBadRequest, "EMPTY_BODY", "no datasets in request body", nil)
		return
	}

	// Reject unknown keys before any table is touched.
	for key := range body {
		if _, ok := dataset.ByKey(key); !ok {
			respondError(w, http.StatusBadRequest, "INVALID_DATASET", "unknown dataset "+sanitizeLogValue(key), nil)
			return
		}
	}

	// Process in registry order so multi-dataset pushes write
	// deterministically.
	results := make([]pushResult, 0, len(body))
	for _, key := range dataset.Keys() {
		raw, ok := body[key]
		if !ok {
			continue
		}
		def, _ := dataset.ByKey(key)
		res, err := h.pushDataset(r, def, raw, first, last)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "WRITE_FAILED", "failed to write "+key, err)
			return
		}
		results = append(results, res)
	}

	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) pushDataset(r *http.Request, def *dataset.Definition, raw []map[string]string, first, last bool) (pushResult, error) {
	records, diag := def.Parse(raw)
	if len(diag.Unmatched) > 0 {
		logging.Warn().
			Str("dataset", def.Key).
			Strs("unmatched", diag.Unmatched).
			Msg("Push sync has unmapped columns")
	}

	// Duplicate natural keys within a chunk would violate the table's
	// primary key on replace and conflict with themselves on upsert.
	records, dupes := sync.DedupeByKey(def, records)
	if dupes > 0 {
		logging.Warn().
			Str("dataset", def.Key).
			Int("duplicates", dupes).
			Msg("Duplicate natural keys in push chunk, keeping last occurrence")
	}

	action := "upsert"
	var err error
	if first {
		action = "replace"
		err = h.store.ReplaceAll(r.Context(), def, records)
	} else {
		err = h.store.UpsertByKey(r.Context(), def, records)
	}
	if err != nil {
		return pushResult{}, err
	}

	res := pushResult{Dataset: def.Key, Rows: len(records), Action: action}
	if !last {
		return res, nil
	}

	// Final chunk: commit the sync log so the pull path's change
	// detection sees this push as the current upstream state.
	totalRows := int64(len(records))
	if v := r.Header.Get(headerTotalRows); v != "" {
		if n, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			totalRows = n
		}
	}
	entry := &database.SyncLogEntry{
		Dataset:    def.Key,
		DataHash:   r.Header.Get(headerDataHash),
		RowCount:   totalRows,
		LastSynced: time.Now().UTC(),
		Outcome:    sync.OutcomeSynced,
	}
	if err := h.store.PutSyncLog(r.Context(), entry); err != nil {
		return pushResult{}, err
	}
	res.Committed = true
	h.rebuilder.Signal()
	return res, nil
}

func headerBool(r *http.Request, name string, absent bool) bool {
	v := r.Header.Get(name)
	if v == "" {
		return absent
	}
	return v == "true" || v == "1"
}
