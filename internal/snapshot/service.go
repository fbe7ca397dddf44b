// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/metrics"
)

// Store is the persistence slice the service needs: the builder's
// read access plus the single-record snapshot table.
type Store interface {
	Reader
	SaveSnapshot(ctx context.Context, payload []byte, builtAt time.Time) error
	LoadSnapshot(ctx context.Context) ([]byte, time.Time, bool, error)
}

// Service owns the snapshot lifecycle: building, compressed storage,
// and the dashboard read path.
type Service struct {
	db           Store
	builder      *Builder
	buildTimeout time.Duration
	now          func() time.Time

	// buildMu serializes builder executions. Every trigger funnels
	// through BuildAndSave, so the rebuilder, a cold dashboard read,
	// and the startup build can never run the builder concurrently.
	buildMu sync.Mutex
}

// NewService creates the snapshot service.
func NewService(db Store, buildTimeout time.Duration) *Service {
	return &Service{
		db:           db,
		builder:      NewBuilder(db),
		buildTimeout: buildTimeout,
		now:          time.Now,
	}
}

// BuildAndSave builds a fresh snapshot and stores it compressed.
// trigger labels the build for metrics: post_sync, manual, startup, or
// cold_read. At most one build executes at a time; a second caller
// blocks until the running build finishes, then builds again.
func (s *Service) BuildAndSave(ctx context.Context, trigger string) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if s.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.buildTimeout)
		defer cancel()
	}

	start := s.now()
	snap, err := s.builder.Build(ctx, start)
	if err != nil {
		return fmt.Errorf("snapshot build failed: %w", err)
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapshot marshal failed: %w", err)
	}

	compressed, err := compress(payload)
	if err != nil {
		return fmt.Errorf("snapshot compress failed: %w", err)
	}

	if err := s.db.SaveSnapshot(ctx, compressed, start.UTC()); err != nil {
		return err
	}

	metrics.SnapshotBuilds.WithLabelValues(trigger).Inc()
	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	logging.Info().Str("trigger", trigger).Int("bytes", len(payload)).Int("compressed", len(compressed)).
		Dur("duration", time.Since(start)).Msg("Snapshot built")
	return nil
}

// Dashboard returns the decompressed snapshot payload, building one
// synchronously when none is stored yet.
func (s *Service) Dashboard(ctx context.Context) ([]byte, time.Time, error) {
	compressed, builtAt, ok, err := s.db.LoadSnapshot(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}

	if !ok {
		if err := s.BuildAndSave(ctx, "cold_read"); err != nil {
			return nil, time.Time{}, err
		}
		compressed, builtAt, ok, err = s.db.LoadSnapshot(ctx)
		if err != nil {
			return nil, time.Time{}, err
		}
		if !ok {
			return nil, time.Time{}, fmt.Errorf("snapshot missing after cold build")
		}
	}

	payload, err := decompress(compressed)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("snapshot decompress failed: %w", err)
	}
	return payload, builtAt, nil
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
