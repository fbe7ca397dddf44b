// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/sync"
)

// SyncRunner starts one full sync pass. Satisfied by *sync.Coordinator.
type SyncRunner interface {
	Run(ctx context.Context, opts sync.Options) (*sync.Report, error)
}

// SchedulerService drives periodic sync passes under supervision. A
// panic inside a run crashes the service and suture restarts it with
// backoff instead of taking the process down.
type SchedulerService struct {
	runner   SyncRunner
	interval time.Duration
}

// NewSchedulerService creates the periodic sync service. interval must
// be positive; callers skip registration entirely when the scheduler
// is disabled.
func NewSchedulerService(runner SyncRunner, interval time.Duration) *SchedulerService {
	return &SchedulerService{runner: runner, interval: interval}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("Periodic sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := s.runner.Run(ctx, sync.Options{})
			switch {
			case errors.Is(err, sync.ErrSyncInProgress):
				logging.Debug().Msg("Scheduled sync skipped, a run is already executing")
			case err != nil:
				logging.Error().Err(err).Msg("Scheduled sync failed to start")
			default:
				logging.Debug().Str("run_id", report.RunID).Msg("Scheduled sync pass finished")
			}
		}
	}
}

func (s *SchedulerService) String() string {
	return "sync-scheduler"
}
