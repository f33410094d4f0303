// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package metrics provides Prometheus metrics for the supervisor.

All collectors are registered with the default registry through promauto and
are exposed by the status API at /metrics:

	curl http://127.0.0.1:8090/metrics

# Available Metrics

Worker lifecycle:
  - agentfleet_worker_launches_total{worker,result}
  - agentfleet_worker_crashes_total{worker}
  - agentfleet_worker_restarts_total{worker,result}
  - agentfleet_worker_terminations_total{outcome}
  - agentfleet_workers_running, agentfleet_workers_desired

Reconciliation:
  - agentfleet_reconcile_duration_seconds
  - agentfleet_reconcile_effects_total{effect}

Registry:
  - agentfleet_registry_health_probes_total{result}
  - agentfleet_registration_attempts_total{worker,result}
  - agentfleet_registration_last_success_timestamp{worker}

Fleet document:
  - agentfleet_config_reloads_total{result}

Crash-restart circuit breakers (one per worker, named restart-<worker>):
  - agentfleet_circuit_breaker_state{name}
  - agentfleet_circuit_breaker_requests_total{name,result}
  - agentfleet_circuit_breaker_consecutive_failures{name}
  - agentfleet_circuit_breaker_state_transitions_total{name,from_state,to_state}

Status API (route is the chi pattern, e.g. /api/v1/workers/{name}):
  - agentfleet_api_requests_total{method,route,status}
  - agentfleet_api_request_duration_seconds{method,route}
  - agentfleet_api_active_requests

Example alert on a crash-looping worker:

	increase(agentfleet_worker_crashes_total[5m]) > 3
*/
package metrics
