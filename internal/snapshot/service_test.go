// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestService(t *testing.T) (*Service, *countingClock) {
	t.Helper()
	db := newTestDB(t)
	seedPortfolio(t, db)

	svc := NewService(db, time.Minute)
	clock := &countingClock{now: buildDay}
	svc.now = clock.Now
	return svc, clock
}

type countingClock struct {
	now time.Time
}

func (c *countingClock) Now() time.Time { return c.now }

func TestBuildAndSaveThenDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.BuildAndSave(ctx, "manual"); err != nil {
		t.Fatalf("BuildAndSave failed: %v", err)
	}

	payload, builtAt, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if builtAt.IsZero() {
		t.Error("expected built-at timestamp")
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("payload is not valid snapshot JSON: %v", err)
	}
	if snap.Portfolio.Properties != 2 {
		t.Errorf("expected 2 properties in served payload, got %d", snap.Portfolio.Properties)
	}
}

func TestRepeatedBuildsAreByteIdentical(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.BuildAndSave(ctx, "manual"); err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	first, _, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}

	if err := svc.BuildAndSave(ctx, "manual"); err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	second, _, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("expected byte-identical payloads for unchanged data")
	}
}

func TestDashboardColdReadBuildsSynchronously(t *testing.T) {
	svc, _ := newTestService(t)

	// No snapshot stored yet: the read path must build one.
	payload, _, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("cold Dashboard read failed: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("cold payload is not valid snapshot JSON: %v", err)
	}
	if len(snap.Properties) != 2 {
		t.Errorf("expected built snapshot with 2 properties, got %d", len(snap.Properties))
	}
}

// trackingStore records how many builder queries run at once.
type trackingStore struct {
	Store
	concurrent atomic.Int32
	maxSeen    atomic.Int32
}

func (s *trackingStore) SelectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	cur := s.concurrent.Add(1)
	defer s.concurrent.Add(-1)
	for {
		max := s.maxSeen.Load()
		if cur <= max || s.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond) // widen any overlap window
	return s.Store.SelectRows(ctx, query, args...)
}

func TestConcurrentBuildTriggersSerialize(t *testing.T) {
	db := newTestDB(t)
	seedPortfolio(t, db)
	store := &trackingStore{Store: db}
	svc := NewService(store, time.Minute)

	// Manual rebuilds racing cold dashboard reads must never run the
	// builder concurrently.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := svc.BuildAndSave(context.Background(), "manual"); err != nil {
				t.Errorf("BuildAndSave failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, _, err := svc.Dashboard(context.Background()); err != nil {
				t.Errorf("Dashboard failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if max := store.maxSeen.Load(); max > 1 {
		t.Errorf("builder queries overlapped, max concurrency %d", max)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	original := []byte(`{"portfolio":{"properties":3}}`)
	compressed, err := compress(original)
	if err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if bytes.Equal(compressed, original) {
		t.Error("expected compressed payload to differ from input")
	}

	restored, err := decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(restored, original) {
		t.Errorf("round trip mismatch: %q", restored)
	}
}
