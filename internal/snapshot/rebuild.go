// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/metrics"
)

// Rebuilder coalesces rebuild signals into at most one running build.
// A signal during a build marks a single pending rebuild; further
// signals are absorbed. Signals also pass through a trailing debounce
// window so a burst of dataset syncs produces one build after the
// burst, not one per dataset.
type Rebuilder struct {
	build    func(ctx context.Context) error
	debounce time.Duration

	building atomic.Bool
	pending  atomic.Bool

	timerMu sync.Mutex
	timer   *time.Timer

	wg sync.WaitGroup
}

// NewRebuilder creates a rebuild coordinator around a build function.
func NewRebuilder(build func(ctx context.Context) error, debounce time.Duration) *Rebuilder {
	return &Rebuilder{build: build, debounce: debounce}
}

// Signal requests a rebuild. Returns immediately; the build fires
// after the debounce window closes. Signals arriving inside the
// window reset it.
func (r *Rebuilder) Signal() {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()

	// Always replace the timer. Reset on an AfterFunc timer re-arms it
	// even after it has fired, which would leave two armed timers and
	// schedule a duplicate build.
	if r.timer != nil && r.timer.Stop() {
		metrics.SnapshotSignalsCoalesced.Inc()
	}
	r.timer = time.AfterFunc(r.debounce, r.fire)
}

// fire starts a build, or marks one pending if a build is running.
func (r *Rebuilder) fire() {
	if !r.building.CompareAndSwap(false, true) {
		r.pending.Store(true)
		metrics.SnapshotSignalsCoalesced.Inc()
		return
	}
	r.wg.Add(1)
	go r.run()
}

// run executes builds until no pending signal remains. Invariant: the
// goroutine owns building==true on entry to each loop iteration.
func (r *Rebuilder) run() {
	defer r.wg.Done()
	for {
		if err := r.build(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Snapshot rebuild failed")
		}
		r.building.Store(false)

		if !r.pending.CompareAndSwap(true, false) {
			return
		}
		if !r.building.CompareAndSwap(false, true) {
			// Another signal already started a build; hand the pending
			// marker back to it.
			r.pending.Store(true)
			return
		}
	}
}

// ErrBuildInProgress is returned by RunNow while another build holds
// the flag; the caller's request is queued behind it.
var ErrBuildInProgress = errors.New("snapshot build already in progress")

// RunNow builds synchronously, bypassing the debounce window. If a
// build is already running the request collapses into the pending
// marker and ErrBuildInProgress is returned.
func (r *Rebuilder) RunNow(ctx context.Context) error {
	if !r.building.CompareAndSwap(false, true) {
		r.pending.Store(true)
		return ErrBuildInProgress
	}
	err := r.build(ctx)
	r.building.Store(false)

	if r.pending.CompareAndSwap(true, false) {
		r.fire()
	}
	return err
}

// Building reports whether a build is currently executing.
func (r *Rebuilder) Building() bool {
	return r.building.Load()
}

// Flush waits for any in-flight build goroutine to finish. Shutdown
// and tests use it; new signals arriving during Flush are not waited
// for.
func (r *Rebuilder) Flush() {
	r.timerMu.Lock()
	if r.timer != nil && r.timer.Stop() {
		// Window still open: run the swallowed build now.
		r.timerMu.Unlock()
		r.fire()
	} else {
		r.timerMu.Unlock()
	}
	r.wg.Wait()
}
