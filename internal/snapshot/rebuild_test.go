// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingBuild tracks build invocations and asserts no overlap.
type countingBuild struct {
	mu         sync.Mutex
	builds     int
	concurrent atomic.Int32
	maxSeen    atomic.Int32
	block      chan struct{} // when set, builds wait until closed
}

func (c *countingBuild) build(context.Context) error {
	cur := c.concurrent.Add(1)
	defer c.concurrent.Add(-1)
	for {
		max := c.maxSeen.Load()
		if cur <= max || c.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.builds++
	c.mu.Unlock()
	return nil
}

func (c *countingBuild) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}

func TestDebounceCoalescesBurst(t *testing.T) {
	cb := &countingBuild{}
	r := NewRebuilder(cb.build, 20*time.Millisecond)

	// Eight dataset syncs finishing in quick succession.
	for i := 0; i < 8; i++ {
		r.Signal()
		time.Sleep(time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	r.Flush()

	if got := cb.total(); got != 1 {
		t.Errorf("expected 1 build for a signal burst, got %d", got)
	}
}

func TestSignalAfterCompletedCycleBuildsOnce(t *testing.T) {
	cb := &countingBuild{}
	r := NewRebuilder(cb.build, 5*time.Millisecond)

	// First cycle completes in full.
	r.Signal()
	time.Sleep(30 * time.Millisecond)
	r.Flush()
	if got := cb.total(); got != 1 {
		t.Fatalf("expected 1 build after first cycle, got %d", got)
	}

	// A single signal against the expired timer must schedule exactly
	// one more build, not re-arm the old timer alongside a new one.
	r.Signal()
	time.Sleep(30 * time.Millisecond)
	r.Flush()
	if got := cb.total(); got != 2 {
		t.Errorf("expected 2 builds after one signal per cycle, got %d", got)
	}
}

func TestSignalDuringBuildQueuesExactlyOne(t *testing.T) {
	cb := &countingBuild{block: make(chan struct{})}
	r := NewRebuilder(cb.build, time.Millisecond)

	r.Signal()

	// Wait for the build to start, then signal repeatedly while it runs.
	deadline := time.After(2 * time.Second)
	for !r.Building() {
		select {
		case <-deadline:
			t.Fatal("build never started")
		case <-time.After(time.Millisecond):
		}
	}
	for i := 0; i < 5; i++ {
		r.Signal()
	}
	time.Sleep(20 * time.Millisecond) // let the debounce windows close against the running build

	close(cb.block)
	time.Sleep(50 * time.Millisecond)
	r.Flush()

	if got := cb.total(); got != 2 {
		t.Errorf("expected running build plus one queued rebuild, got %d", got)
	}
	if max := cb.maxSeen.Load(); max > 1 {
		t.Errorf("expected at most one concurrent build, saw %d", max)
	}
}

func TestAtMostOneConcurrentBuild(t *testing.T) {
	cb := &countingBuild{}
	r := NewRebuilder(cb.build, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Signal()
		}()
	}
	wg.Wait()

	time.Sleep(50 * time.Millisecond)
	r.Flush()

	if max := cb.maxSeen.Load(); max > 1 {
		t.Errorf("expected at most one concurrent build, saw %d", max)
	}
	if got := cb.total(); got < 1 {
		t.Error("expected at least one build")
	}
}
