// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/dataset"
	"github.com/stoagroup/leasing-backend/internal/logging"
)

// Report is the summary of a full coordinator run, shaped for the
// sync endpoint response.
type Report struct {
	RunID    string   `json:"run_id"`
	Success  bool     `json:"success"`
	Synced   int      `json:"synced"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
	Results  []Result `json:"results"`
	Duration string   `json:"duration"`
}

// Options narrow or force a coordinator run.
type Options struct {
	// Dataset restricts the run to a single dataset key. Empty means
	// all registered datasets in registry order.
	Dataset string
	// Force writes even when the change detector reports no change.
	Force bool
}

// Coordinator runs dataset syncs sequentially in registry order. Only
// one run executes at a time; a second caller gets ErrSyncInProgress
// instead of queueing behind a multi-minute run.
type Coordinator struct {
	orchestrator *Orchestrator
	datasetIDs   map[string]string
	writeTimeout time.Duration

	syncMu   sync.Mutex
	mu       sync.RWMutex
	running  bool
	lastSync time.Time
	lastRun  *Report

	onSyncCompleted func(synced int)
}

// ErrSyncInProgress is returned when a run is requested while another
// run holds the sync lock.
var ErrSyncInProgress = fmt.Errorf("sync already in progress")

// NewCoordinator creates the multi-dataset sync coordinator.
// onSyncCompleted fires after any run that wrote at least one dataset;
// the snapshot rebuilder hangs off it.
func NewCoordinator(orchestrator *Orchestrator, cfg *config.SyncConfig, datasetIDs map[string]string, onSyncCompleted func(synced int)) *Coordinator {
	return &Coordinator{
		orchestrator:    orchestrator,
		datasetIDs:      datasetIDs,
		writeTimeout:    cfg.WriteTimeout,
		onSyncCompleted: onSyncCompleted,
	}
}

// Run syncs the selected datasets sequentially and returns the
// per-dataset results. Returns ErrSyncInProgress when a run is
// already executing.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Report, error) {
	if !c.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.syncMu.Unlock()

	defs, err := c.selectDatasets(opts.Dataset)
	if err != nil {
		return nil, err
	}

	c.setRunning(true)
	defer c.setRunning(false)

	start := time.Now()
	report := &Report{RunID: uuid.NewString(), Errors: []string{}}

	for _, def := range defs {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", def.Key, ctx.Err()))
			break
		}

		id, ok := c.datasetIDs[def.Key]
		if !ok || id == "" {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: dataset ID not configured", def.Key))
			report.Results = append(report.Results, Result{
				Dataset: def.Key,
				Outcome: OutcomeErrored,
				Reason:  "not_configured",
				Error:   "dataset ID not configured",
			})
			continue
		}

		runCtx := ctx
		var cancel context.CancelFunc
		if c.writeTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		}
		result := c.orchestrator.SyncDataset(runCtx, def, id, opts.Force)
		if cancel != nil {
			cancel()
		}

		report.Results = append(report.Results, result)
		switch result.Outcome {
		case OutcomeSynced:
			report.Synced++
		case OutcomeSkipped:
			report.Skipped++
		case OutcomeErrored:
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", def.Key, result.Error))
		}
	}

	report.Success = len(report.Errors) == 0
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	c.mu.Lock()
	c.lastSync = time.Now()
	c.lastRun = report
	c.mu.Unlock()

	logging.Info().Str("run_id", report.RunID).Int("synced", report.Synced).Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).Str("duration", report.Duration).Msg("Sync run finished")

	if report.Synced > 0 && c.onSyncCompleted != nil {
		c.onSyncCompleted(report.Synced)
	}
	return report, nil
}

// Check runs the cheap metadata-only pre-flight for the selected
// datasets. An unreachable upstream marks that dataset's result as
// errored and the check moves on; only an unknown dataset key fails
// the whole call.
func (c *Coordinator) Check(ctx context.Context, datasetKey string) ([]CheckResult, error) {
	defs, err := c.selectDatasets(datasetKey)
	if err != nil {
		return nil, err
	}

	checks := make([]CheckResult, 0, len(defs))
	for _, def := range defs {
		id, ok := c.datasetIDs[def.Key]
		if !ok || id == "" {
			checks = append(checks, CheckResult{Dataset: def.Key, NeedsSync: false, Reason: "not_configured"})
			continue
		}
		check, err := c.orchestrator.CheckDataset(ctx, def, id)
		if err != nil {
			checks = append(checks, CheckResult{
				Dataset: def.Key,
				Reason:  "upstream_unavailable",
				Error:   err.Error(),
			})
			continue
		}
		checks = append(checks, *check)
	}
	return checks, nil
}

func (c *Coordinator) selectDatasets(key string) ([]*dataset.Definition, error) {
	if key == "" {
		return dataset.All(), nil
	}
	def, ok := dataset.ByKey(key)
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", key)
	}
	return []*dataset.Definition{def}, nil
}

func (c *Coordinator) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// Status reports whether a run is executing and when the last run
// finished.
func (c *Coordinator) Status() (running bool, lastSync time.Time, lastRun *Report) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running, c.lastSync, c.lastRun
}
