// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/database"
	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/metrics"
	"github.com/stoagroup/leasing-backend/internal/snapshot"
	"github.com/stoagroup/leasing-backend/internal/sync"
)

// Store is the database surface the handlers touch directly.
// *database.DB satisfies it.
type Store interface {
	sync.Store
	Ping(ctx context.Context) error
	Count(ctx context.Context, table string) (int64, error)
	Wipe(ctx context.Context, table string) error
	WipeAll(ctx context.Context) error
	AllSyncLogs(ctx context.Context) ([]database.SyncLogEntry, error)
	SelectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Coordinator is the sync coordinator surface the handlers use.
type Coordinator interface {
	Run(ctx context.Context, opts sync.Options) (*sync.Report, error)
	Check(ctx context.Context, datasetKey string) ([]sync.CheckResult, error)
	Status() (running bool, lastSync time.Time, lastRun *sync.Report)
}

// SnapshotService serves the dashboard payload.
type SnapshotService interface {
	Dashboard(ctx context.Context) ([]byte, time.Time, error)
}

// Rebuilder accepts snapshot rebuild requests.
type Rebuilder interface {
	Signal()
	RunNow(ctx context.Context) error
	Building() bool
}

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	store       Store
	coordinator Coordinator
	snapshots   SnapshotService
	rebuilder   Rebuilder
	cfg         *config.Config
}

// NewHandler creates the API handler set.
func NewHandler(store Store, coordinator Coordinator, snapshots SnapshotService, rebuilder Rebuilder, cfg *config.Config) *Handler {
	return &Handler{
		store:       store,
		coordinator: coordinator,
		snapshots:   snapshots,
		rebuilder:   rebuilder,
		cfg:         cfg,
	}
}

// SyncFromDomo runs the pull sync: all datasets, or one via
// ?dataset=, with ?force=true bypassing change detection.
func (h *Handler) SyncFromDomo(w http.ResponseWriter, r *http.Request) {
	opts := sync.Options{
		Dataset: r.URL.Query().Get("dataset"),
		Force:   queryBool(r, "force"),
	}

	report, err := h.coordinator.Run(r.Context(), opts)
	if errors.Is(err, sync.ErrSyncInProgress) {
		respondError(w, http.StatusConflict, "SYNC_IN_PROGRESS", "a sync run is already executing", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATASET", err.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// SyncCheck reports, per dataset, whether upstream row counts suggest
// a sync is needed. Metadata only; no export. An unreachable upstream
// shows up as that dataset's errored detail, not a failed call.
func (h *Handler) SyncCheck(w http.ResponseWriter, r *http.Request) {
	checks, err := h.coordinator.Check(r.Context(), r.URL.Query().Get("dataset"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DATASET", err.Error(), nil)
		return
	}

	changes := false
	for _, c := range checks {
		if c.NeedsSync {
			changes = true
			break
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"changes": changes,
		"details": checks,
	})
}

// SyncStatus reports whether a run is in flight and the last report.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	running, lastSync, lastRun := h.coordinator.Status()
	resp := map[string]any{
		"running":  running,
		"last_run": lastRun,
	}
	if !lastSync.IsZero() {
		resp["last_sync"] = lastSync.UTC()
	}
	respondJSON(w, http.StatusOK, resp)
}

// RebuildSnapshot forces a snapshot build. A build already in flight
// absorbs the request; the response says so.
func (h *Handler) RebuildSnapshot(w http.ResponseWriter, r *http.Request) {
	err := h.rebuilder.RunNow(r.Context())
	if errors.Is(err, snapshot.ErrBuildInProgress) {
		respondJSON(w, http.StatusAccepted, map[string]any{"queued": true})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BUILD_FAILED", "snapshot build failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"rebuilt": true})
}

// Wipe clears one dataset's table (?table= accepts a table name or
// dataset key) or everything (?table=all). The wiped dataset's sync
// log goes with it, so the next sync-check reports changed.
func (h *Handler) Wipe(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("table")
	if target == "" || target == "all" {
		if err := h.store.WipeAll(r.Context()); err != nil {
			respondError(w, http.StatusInternalServerError, "WIPE_FAILED", "failed to wipe tables", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"wiped": "all"})
		return
	}

	table := target
	if def, ok := dataset.ByKey(target); ok {
		table = def.Table
	}
	if err := h.store.Wipe(r.Context(), table); err != nil {
		if _, ok := dataset.ByTable(table); !ok {
			respondError(w, http.StatusBadRequest, "INVALID_TABLE", "unknown table "+sanitizeLogValue(target), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "WIPE_FAILED", "failed to wipe table", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"wiped": table})
}

// Dashboard serves the cached snapshot with ETag validation. Sync and
// build internals never surface here: a reader either gets a payload
// or a plain unavailable error.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	payload, builtAt, err := h.snapshots.Dashboard(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "dashboard snapshot unavailable", err)
		return
	}

	etag := `"` + generateETag(payload) + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("X-Snapshot-Built-At", builtAt.UTC().Format(time.RFC3339))

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		metrics.DashboardRequests.WithLabelValues("not_modified").Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	metrics.DashboardRequests.WithLabelValues("hit").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// DiagnosticsColumns exposes the dataset registry plus per-table row
// counts, sync log entries, and the destination columns no source row
// ever populated, for debugging upstream mapping gaps.
func (h *Handler) DiagnosticsColumns(w http.ResponseWriter, r *http.Request) {
	logs, err := h.store.AllSyncLogs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DIAGNOSTICS_FAILED", "failed to read sync log", err)
		return
	}
	logByKey := make(map[string]database.SyncLogEntry, len(logs))
	for _, e := range logs {
		logByKey[e.Dataset] = e
	}

	type columnInfo struct {
		Name    string   `json:"name"`
		Type    string   `json:"type"`
		Sources []string `json:"sources"`
	}
	type datasetInfo struct {
		Dataset     string                 `json:"dataset"`
		Table       string                 `json:"table"`
		NaturalKey  []string               `json:"natural_key"`
		Columns     []columnInfo           `json:"columns"`
		RowCount    int64                  `json:"row_count"`
		Unpopulated []string               `json:"unpopulated"`
		SyncLog     *database.SyncLogEntry `json:"sync_log,omitempty"`
	}

	infos := make([]datasetInfo, 0, len(dataset.All()))
	for _, def := range dataset.All() {
		count, err := h.store.Count(r.Context(), def.Table)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "DIAGNOSTICS_FAILED", "failed to count rows", err)
			return
		}

		info := datasetInfo{
			Dataset:     def.Key,
			Table:       def.Table,
			NaturalKey:  def.NaturalKey,
			RowCount:    count,
			Unpopulated: []string{},
		}
		for _, col := range def.Columns {
			info.Columns = append(info.Columns, columnInfo{Name: col.Name, Type: col.Kind.String(), Sources: col.Sources})
		}
		if count > 0 {
			unpopulated, err := h.unpopulatedColumns(r.Context(), def)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "DIAGNOSTICS_FAILED", "failed to inspect columns", err)
				return
			}
			info.Unpopulated = unpopulated
		}
		if e, ok := logByKey[def.Key]; ok {
			entry := e
			info.SyncLog = &entry
		}
		infos = append(infos, info)
	}
	respondJSON(w, http.StatusOK, infos)
}

// unpopulatedColumns returns the destination columns that hold NULL in
// every stored row. Column and table names come from the registry, not
// the request.
func (h *Handler) unpopulatedColumns(ctx context.Context, def *dataset.Definition) ([]string, error) {
	selects := make([]string, 0, len(def.Columns))
	for _, col := range def.Columns {
		selects = append(selects, fmt.Sprintf("count(%s) AS %s", col.Name, col.Name))
	}
	rows, err := h.store.SelectRows(ctx, "SELECT "+strings.Join(selects, ", ")+" FROM "+def.Table)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("column counts for %s: expected 1 row, got %d", def.Table, len(rows))
	}

	unpopulated := []string{}
	for _, col := range def.Columns {
		if n, ok := rows[0][col.Name].(int64); ok && n == 0 {
			unpopulated = append(unpopulated, col.Name)
		}
	}
	return unpopulated, nil
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: alive and the database answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database not reachable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health is the detailed health view: database reachability plus sync
// state.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	running, lastSync, _ := h.coordinator.Status()
	resp := map[string]any{
		"status":       dbStatus,
		"database":     dbStatus,
		"sync_running": running,
	}
	if !lastSync.IsZero() {
		resp["last_sync"] = lastSync.UTC()
	}
	respondJSON(w, status, resp)
}

func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}
