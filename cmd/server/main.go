// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/stacksnap/internal/config"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/store"
	"github.com/tomtom215/stacksnap/internal/supervisor"
	"github.com/tomtom215/stacksnap/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("container_api", cfg.Container.APIURL).
		Str("private_root", cfg.Storage.PrivateRoot).
		Str("store_path", cfg.Storage.StorePath).
		Bool("triplestore", cfg.Triplestore.URL != "").
		Msg("Configuration loaded")

	db, err := store.Open(store.Config{Path: cfg.Storage.StorePath, SyncWrites: true})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open entity store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing entity store")
		}
	}()
	logging.Info().Msg("Entity store opened")

	app, err := buildApp(cfg, db)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize components")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout + treeConfig.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	tree.AddAPIService(services.NewHTTPServerService(app.server, app.server.Addr, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", app.server.Addr).Msg("HTTP server service added")

	if cfg.Audit.Interval > 0 {
		tree.AddMaintenanceService(services.NewAuditService(app.auditor, cfg.Audit.Interval))
		logging.Info().Dur("interval", cfg.Audit.Interval).Msg("Audit scheduler added")
	} else {
		logging.Info().Msg("Audit scheduler disabled (AUDIT_INTERVAL=0)")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
