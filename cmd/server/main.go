// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/api"
	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/config"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
	"github.com/Kurisu21/webeenthere-sub006/internal/events"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
	"github.com/Kurisu21/webeenthere-sub006/internal/supervisor"
	"github.com/Kurisu21/webeenthere-sub006/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.LoggingInitConfig())

	logging.Info().
		Str("version", version).
		Str("db_driver", cfg.Database.Driver).
		Str("db_path", cfg.Database.Path).
		Str("backup_dir", cfg.Backup.Dir).
		Str("metadata_dir", cfg.Metadata.Dir).
		Msg("Configuration loaded")

	store, err := backup.OpenBadgerStore(cfg.Metadata.Dir)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open metadata store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing metadata store")
		}
	}()

	dumper, err := dump.Open(cfg.DumpConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database dumper")
	}
	defer func() {
		if err := dumper.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	bus := events.NewBus(events.DefaultConfig())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	manager, err := backup.NewManager(cfg.BackupManagerConfig(), store, dumper, backup.WithEventSink(bus))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create backup manager")
	}
	logging.Info().Msg("Backup manager initialized")

	router := api.NewRouter(api.NewHandler(manager, version), &api.ChiMiddlewareConfig{
		RateLimitRequests: cfg.Server.RateLimitReqs,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
		RateLimitDisabled: cfg.Server.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddSchedulingService(services.NewBackupSchedulerService(manager))
	tree.AddEventService(events.NewLogSubscriber(bus, nil))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Info().Msg("Starting supervisor tree...")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Backup service stopped")
}
