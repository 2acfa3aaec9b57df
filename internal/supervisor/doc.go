// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package supervisor provides process supervision for stacksnap using suture v4.

# Overview

	RootSupervisor ("stacksnap")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── AuditService (if AUDIT_INTERVAL > 0)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A failing audit pass restarts only the audit service; the operator API
keeps serving.

Supervisor events are logged through sutureslog. Pass
logging.NewSlogLogger() so they end up in the zerolog output.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Addr(), 30*time.Second))
	tree.AddMaintenanceService(services.NewAuditService(auditor, time.Hour))
	return tree.Serve(ctx)
*/
package supervisor
