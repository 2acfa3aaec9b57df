// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package main

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/tomtom215/stacksnap/internal/api"
	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/breaker"
	"github.com/tomtom215/stacksnap/internal/config"
	"github.com/tomtom215/stacksnap/internal/container"
	"github.com/tomtom215/stacksnap/internal/database"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/snapshot"
	"github.com/tomtom215/stacksnap/internal/store"
	"github.com/tomtom215/stacksnap/internal/triplestore"
	"github.com/tomtom215/stacksnap/internal/workflow"
)

// stagingDir holds restored application and file dumps under the private root.
const stagingDir = "restore-staging"

type app struct {
	server  *http.Server
	auditor *audit.Auditor
}

// buildApp wires every component on top of the entity store.
func buildApp(cfg *config.Config, db *store.Store) (*app, error) {
	storage := snapshot.Storage{
		PrivateRoot:     cfg.Storage.PrivateRoot,
		PublicRoot:      cfg.Storage.PublicRoot,
		TemporaryRoot:   cfg.Storage.TemporaryRoot,
		SnapshotSubpath: cfg.Storage.SnapshotSubpath,
		PublicURLBase:   cfg.Storage.PublicURLBase,
		HostPrivateRoot: cfg.Storage.HostPrivateRoot,
	}
	fsys := snapshot.OSFS{}

	engine := container.NewHTTPClient(container.ClientConfig{
		BaseURL:           cfg.Container.APIURL,
		APIKey:            cfg.Container.APIKey,
		Timeout:           cfg.Container.Timeout,
		RequestsPerSecond: cfg.Container.RequestsPerSecond,
		Burst:             cfg.Container.Burst,
		Breaker:           breaker.Settings{},
	})
	orch := container.NewOrchestrator(engine, nil, container.Config{
		CeilingSeconds:       cfg.Server.RequestCeilingSeconds,
		SleepIntervalSeconds: cfg.Container.SleepIntervalSeconds,
	})
	logging.Info().
		Int("ceiling_seconds", cfg.Server.RequestCeilingSeconds).
		Int("sleep_interval", cfg.Container.SleepIntervalSeconds).
		Msg("Container orchestrator initialized")

	rdf := triplestore.NewClient(triplestore.ClientConfig{
		BaseURL:  cfg.Triplestore.URL,
		Username: cfg.Triplestore.Username,
		Password: cfg.Triplestore.Password,
		Timeout:  cfg.Triplestore.Timeout,
	})
	exporter := triplestore.NewExporter(rdf, storage)

	dumps := database.NewCoordinator(db, db, orch, storage, fsys, database.Config{
		DefaultContainer:  cfg.Container.DefaultContainer,
		User:              cfg.Container.FileOwner,
		Shell:             cfg.Dump.Shell,
		DumpTool:          cfg.Dump.Tool,
		RestoreTool:       cfg.Dump.RestoreTool,
		Compressor:        cfg.Dump.Compressor,
		ServiceKeyPattern: cfg.Dump.ServiceKeyPattern,
		ContainerRoot:     cfg.Storage.ContainerPrivateRoot,
		CacheClear:        cfg.Dump.CacheClear,
	})

	bags := snapshot.NewAssembler(engine, storage, fsys, snapshot.AssemblerConfig{
		Image: cfg.Container.HelperImage,
		User:  cfg.Container.HelperUser,
	})

	restorer := snapshot.NewCoordinator(db, storage, fsys, snapshot.RestoreConfig{
		TempDir:         cfg.Storage.RestoreTempDir,
		DownloadTimeout: cfg.Storage.DownloadTimeout,
	})
	staging := snapshot.StagingHandler{FS: fsys, Root: filepath.Join(cfg.Storage.PrivateRoot, stagingDir)}
	restorer.Register(models.BundleMariaDB, dumps.RestoreHandler())
	restorer.Register(models.BundleTriplestore, triplestore.RestoreHandler{Store: rdf})
	restorer.Register(models.BundleDrupal, staging)
	restorer.Register(models.BundleFilesystem, staging)

	auditor, err := audit.New(db, storage, fsys, audit.Config{
		GracePeriod:    cfg.Audit.GracePeriod,
		PseudoPatterns: cfg.Audit.PseudoPatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auditor: %w", err)
	}

	creator := workflow.NewCreator(workflow.Deps{
		Records:   db,
		Databases: dumps,
		Exports:   exporter,
		Bags:      bags,
		Waiter:    orch,
		Cleaner:   auditor,
		Storage:   storage,
		FS:        fsys,
	})

	handler := api.NewHandler(creator, restorer, auditor, db)
	router := api.NewRouter(handler, api.NewChiMiddleware(middlewareConfig(cfg.Server)))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return &app{server: server, auditor: auditor}, nil
}

func middlewareConfig(s config.ServerConfig) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	if len(s.CORSOrigins) > 0 {
		mw.CORSAllowedOrigins = s.CORSOrigins
	}
	if s.RateLimitReqs > 0 {
		mw.RateLimitRequests = s.RateLimitReqs
	}
	if s.MutationLimitReqs > 0 {
		mw.MutationRateLimitRequests = s.MutationLimitReqs
	}
	if s.RateLimitWindow > 0 {
		mw.RateLimitWindow = s.RateLimitWindow
	}
	mw.RateLimitDisabled = s.RateLimitDisabled
	return mw
}
