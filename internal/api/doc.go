// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package api provides the read-only HTTP status API for a running supervisor.

Endpoints:

	GET /health                    liveness, always 200 while the process serves
	GET /metrics                   Prometheus exposition
	GET /api/v1/fleet              fleet summary with every worker
	GET /api/v1/workers            worker list only
	GET /api/v1/workers/{name}     one worker including its recent output

Every /api/v1 response uses the models.APIResponse envelope. Unknown workers
return 404 with code NOT_FOUND.

The router is built with chi. Global middleware is request ID, panic
recovery and Prometheus instrumentation. The /api/v1 group also gets CORS
(go-chi/cors, origins from status.cors_allowed_origins) and per-IP rate
limiting (go-chi/httprate).

The package depends only on the StatusSource interface, which
*supervisor.Supervisor satisfies. cmd/agentfleet wires the two together:

	sup, err := supervisor.New(cfg, supervisor.WithStatusHandler(
	    func(s *supervisor.Supervisor) http.Handler {
	        return api.NewRouter(s, cfg.Status).Handler()
	    }))
*/
package api
