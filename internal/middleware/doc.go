// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package middleware provides HTTP middleware for the agentfleet status API.

Both middlewares have the chi signature func(http.Handler) http.Handler and
are mounted by internal/api:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

# RequestID

RequestID accepts a printable X-Request-ID from the caller or generates a
UUID v4. The ID is echoed on the response and stored in the request context
(GetRequestID). A fresh correlation ID is attached for logging.Ctx.

# PrometheusMetrics

PrometheusMetrics records:

  - agentfleet_api_requests_total{method, route, status}
  - agentfleet_api_request_duration_seconds{method, route}
  - agentfleet_api_active_requests

The route label is the chi route pattern (for example
/api/v1/workers/{name}), which keeps label cardinality bounded.
*/
package middleware
