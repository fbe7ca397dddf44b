// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/stoagroup/leasing-backend/internal/database"
	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/domo"
	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/metrics"
)

// Outcomes recorded per dataset sync attempt.
const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
	OutcomeErrored = "errored"
)

// Source is the upstream the orchestrator pulls from. Implemented by
// domo.Client; tests substitute a fake.
type Source interface {
	GetDatasetMetadata(ctx context.Context, datasetID string) (*domo.Metadata, error)
	ExportRows(ctx context.Context, datasetID string) ([]map[string]string, error)
}

// Store is the slice of the database the orchestrator needs beyond
// the writer: sync log reads and writes.
type Store interface {
	WriterStore
	GetSyncLog(ctx context.Context, datasetKey string) (*database.SyncLogEntry, error)
	PutSyncLog(ctx context.Context, e *database.SyncLogEntry) error
}

// Result is the outcome of one dataset sync attempt.
type Result struct {
	Dataset     string               `json:"dataset"`
	Outcome     string               `json:"outcome"`
	Reason      string               `json:"reason,omitempty"`
	Rows        int                  `json:"rows"`
	Chunks      int                  `json:"chunks,omitempty"`
	Duplicates  int                  `json:"duplicates,omitempty"`
	Error       string               `json:"error,omitempty"`
	Diagnostics *dataset.Diagnostics `json:"diagnostics,omitempty"`
}

// CheckResult is the cheap pre-flight verdict for one dataset, based
// on upstream metadata only (no export).
type CheckResult struct {
	Dataset          string `json:"dataset"`
	NeedsSync        bool   `json:"needs_sync"`
	Reason           string `json:"reason"`
	UpstreamRowCount int64  `json:"upstream_row_count"`
	StoredRowCount   int64  `json:"stored_row_count"`
	Error            string `json:"error,omitempty"`
}

// Orchestrator syncs a single dataset end to end: export, typed
// parse, change detection, chunked write, sync log update.
type Orchestrator struct {
	source Source
	store  Store
	writer *Writer
}

// NewOrchestrator creates a per-dataset sync orchestrator.
func NewOrchestrator(source Source, store Store, writer *Writer) *Orchestrator {
	return &Orchestrator{source: source, store: store, writer: writer}
}

// SyncDataset runs one dataset through the full pipeline. When force
// is false and the export matches the sync log's row count and content
// hash, the write is skipped and the sync log is left untouched: the
// stored entry still describes the data on disk.
//
// The sync log is updated after every write, including failed ones: an
// errored entry carries a sentinel row count so the next run always
// detects a change and re-writes.
func (o *Orchestrator) SyncDataset(ctx context.Context, def *dataset.Definition, datasetID string, force bool) Result {
	start := time.Now()
	result := o.syncDataset(ctx, def, datasetID, force)
	metrics.ObserveSync(def.Key, result.Outcome, time.Since(start))

	evt := logging.Info()
	if result.Outcome == OutcomeErrored {
		evt = logging.Error()
	}
	evt.Str("dataset", def.Key).Str("outcome", result.Outcome).Str("reason", result.Reason).
		Int("rows", result.Rows).Dur("duration", time.Since(start)).Msg("Dataset sync finished")
	return result
}

func (o *Orchestrator) syncDataset(ctx context.Context, def *dataset.Definition, datasetID string, force bool) Result {
	result := Result{Dataset: def.Key}

	prev, err := o.store.GetSyncLog(ctx, def.Key)
	if err != nil {
		return o.errored(result, "sync_log_read_failed", "write", err)
	}

	raw, err := o.source.ExportRows(ctx, datasetID)
	if err != nil {
		metrics.SyncErrors.WithLabelValues(def.Key, "fetch").Inc()
		result.Outcome = OutcomeErrored
		result.Reason = "export_failed"
		result.Error = err.Error()
		return result
	}

	hash := ContentHash(len(raw), raw)
	decision := Detect(prev, int64(len(raw)), hash)

	if !force && !decision.Changed {
		// Skip leaves the sync log untouched: the stored entry still
		// describes the data on disk.
		metrics.SyncSkips.WithLabelValues(def.Key).Inc()
		result.Outcome = OutcomeSkipped
		result.Reason = decision.Reason
		return result
	}

	records, diag := def.Parse(raw)
	result.Diagnostics = diag
	if len(diag.Unmatched) > 0 {
		metrics.MappingGaps.WithLabelValues(def.Key).Set(float64(len(diag.Unmatched)))
		logging.Warn().Str("dataset", def.Key).Strs("unmatched", diag.Unmatched).Msg("Export columns with no schema mapping")
	} else {
		metrics.MappingGaps.WithLabelValues(def.Key).Set(0)
	}
	if failures := totalParseFailures(diag); failures > 0 {
		metrics.SyncErrors.WithLabelValues(def.Key, "parse").Add(float64(failures))
	}

	wr, err := o.writer.Write(ctx, def, records)
	if wr != nil {
		result.Rows = wr.Rows
		result.Chunks = wr.Chunks
		result.Duplicates = wr.Duplicates
	}
	if err != nil {
		metrics.SyncErrors.WithLabelValues(def.Key, "write").Inc()
		result.Outcome = OutcomeErrored
		result.Reason = "write_failed"
		result.Error = err.Error()
		// Sentinel row count: guarantees the next detection sees a
		// change and repairs the partial write.
		o.putLog(ctx, &result, &database.SyncLogEntry{
			Dataset:    def.Key,
			DataHash:   "",
			RowCount:   -1,
			LastSynced: time.Now().UTC(),
			Outcome:    OutcomeErrored,
		})
		return result
	}

	result.Outcome = OutcomeSynced
	result.Reason = decision.Reason
	if force && !decision.Changed {
		result.Reason = "forced"
	}
	o.putLog(ctx, &result, &database.SyncLogEntry{
		Dataset:    def.Key,
		DataHash:   hash,
		RowCount:   int64(len(raw)),
		LastSynced: time.Now().UTC(),
		Outcome:    OutcomeSynced,
	})
	return result
}

// putLog writes the sync log entry, downgrading the result to errored
// if the log write itself fails.
func (o *Orchestrator) putLog(ctx context.Context, result *Result, e *database.SyncLogEntry) {
	if err := o.store.PutSyncLog(ctx, e); err != nil {
		metrics.SyncErrors.WithLabelValues(e.Dataset, "write").Inc()
		result.Outcome = OutcomeErrored
		result.Reason = "sync_log_write_failed"
		result.Error = err.Error()
	}
}

func totalParseFailures(diag *dataset.Diagnostics) int {
	total := 0
	for _, n := range diag.ParseFailures {
		total += n
	}
	return total
}

func (o *Orchestrator) errored(result Result, reason, kind string, err error) Result {
	metrics.SyncErrors.WithLabelValues(result.Dataset, kind).Inc()
	result.Outcome = OutcomeErrored
	result.Reason = reason
	result.Error = err.Error()
	return result
}

// CheckDataset reports whether a dataset likely needs a sync, using
// only the upstream row count. A matching count is "possibly
// unchanged": confirming content equality requires the export the
// full sync performs.
func (o *Orchestrator) CheckDataset(ctx context.Context, def *dataset.Definition, datasetID string) (*CheckResult, error) {
	prev, err := o.store.GetSyncLog(ctx, def.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync log for %s: %w", def.Key, err)
	}

	meta, err := o.source.GetDatasetMetadata(ctx, datasetID)
	if err != nil {
		metrics.SyncErrors.WithLabelValues(def.Key, "fetch").Inc()
		return nil, fmt.Errorf("failed to fetch metadata for %s: %w", def.Key, err)
	}

	check := &CheckResult{Dataset: def.Key, UpstreamRowCount: meta.RowCount}
	switch {
	case prev == nil:
		check.NeedsSync = true
		check.Reason = "never_synced"
	case prev.RowCount != meta.RowCount:
		check.NeedsSync = true
		check.Reason = "row_count_changed"
		check.StoredRowCount = prev.RowCount
	default:
		check.NeedsSync = false
		check.Reason = "possibly_unchanged"
		check.StoredRowCount = prev.RowCount
	}
	return check, nil
}
