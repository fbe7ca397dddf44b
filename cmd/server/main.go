// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package main is the entry point for the leasing backend server.
//
// The server syncs leasing datasets from Domo into a local DuckDB
// store and serves a precomputed dashboard snapshot over HTTP.
//
// # Application Architecture
//
// Components initialize in order:
//
//  1. Configuration: layered Koanf v2 sources (defaults, YAML file,
//     environment variables)
//  2. Database: DuckDB with the dataset registry schema
//  3. Domo client: OAuth client-credentials, circuit breaker, retries
//  4. Sync coordinator: sequential per-dataset orchestration with
//     change detection and chunked writes
//  5. Snapshot rebuilder: debounced post-sync dashboard rebuilds
//  6. HTTP server: Chi router with the sync control plane and the
//     public dashboard read path
//
// # Configuration
//
// Environment variables override the config file; see config.Default
// for the full set. The minimum production configuration:
//
//	export DOMO_CLIENT_ID=...
//	export DOMO_CLIENT_SECRET=...
//	export DOMO_DATASET_LEASING=<dataset-uuid>
//	export SYNC_SECRET=$(openssl rand -hex 16)
//	export DUCKDB_PATH=/data/leasing.duckdb
//	export ENVIRONMENT=production
//	./leasing-backend
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the scheduler stops,
// in-flight requests get 10 seconds to finish, pending snapshot
// builds flush, and the database closes last.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stoagroup/leasing-backend/internal/api"
	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/database"
	"github.com/stoagroup/leasing-backend/internal/domo"
	"github.com/stoagroup/leasing-backend/internal/logging"
	"github.com/stoagroup/leasing-backend/internal/snapshot"
	"github.com/stoagroup/leasing-backend/internal/supervisor"
	syncpkg "github.com/stoagroup/leasing-backend/internal/sync"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Int("datasets", len(cfg.Domo.DatasetIDs)).
		Msg("Starting leasing backend")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close database")
		}
	}()

	snapshots := snapshot.NewService(db, cfg.Snapshot.BuildTimeout)
	rebuilder := snapshot.NewRebuilder(func(ctx context.Context) error {
		return snapshots.BuildAndSave(ctx, "post_sync")
	}, cfg.Snapshot.DebounceWindow)

	client := domo.NewClient(&cfg.Domo, &cfg.Sync)
	writer := syncpkg.NewWriter(db, cfg.Sync.ChunkSize, cfg.Sync.ChunkPause)
	orchestrator := syncpkg.NewOrchestrator(client, db, writer)
	coordinator := syncpkg.NewCoordinator(orchestrator, &cfg.Sync, cfg.Domo.DatasetIDs, func(synced int) {
		logging.Debug().Int("synced", synced).Msg("Sync completed, signaling snapshot rebuild")
		rebuilder.Signal()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Snapshot.BuildOnStartup {
		startupCtx, startupCancel := context.WithTimeout(ctx, cfg.Snapshot.BuildTimeout)
		if err := snapshots.BuildAndSave(startupCtx, "startup"); err != nil {
			logging.Warn().Err(err).Msg("Startup snapshot build failed, serving on demand")
		}
		startupCancel()
	}

	handler := api.NewHandler(db, coordinator, snapshots, rebuilder, cfg)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Router(handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Suture reports through slog; keep its format aligned with the
	// app logger.
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, shutdownTimeout))
	if cfg.Sync.Interval > 0 {
		tree.AddSyncService(supervisor.NewSchedulerService(coordinator, cfg.Sync.Interval))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	// Let a debounced rebuild land before the database closes.
	rebuilder.Flush()

	logging.Info().Msg("Leasing backend stopped gracefully")
}
