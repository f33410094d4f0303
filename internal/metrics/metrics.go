// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Worker process lifecycle (launch, crash, restart, termination)
// - Reconciliation passes
// - Registry bootstrap and periodic registration
// - Fleet document reloads
// - Crash-restart circuit breakers
// - Status API requests

var (
	// Worker Lifecycle Metrics
	WorkerLaunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_worker_launches_total",
			Help: "Total number of worker launch attempts",
		},
		[]string{"worker", "result"}, // result: "success", "failure"
	)

	WorkerCrashes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_worker_crashes_total",
			Help: "Total number of workers found exited while still desired",
		},
		[]string{"worker"},
	)

	WorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_worker_restarts_total",
			Help: "Total number of crash restarts",
		},
		[]string{"worker", "result"}, // result: "restarted", "suppressed", "failed"
	)

	WorkerTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_worker_terminations_total",
			Help: "Total number of worker terminations by outcome",
		},
		[]string{"outcome"}, // outcome: "graceful", "forced", "already_exited"
	)

	WorkersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentfleet_workers_running",
			Help: "Number of workers currently tracked as running",
		},
	)

	WorkersDesired = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentfleet_workers_desired",
			Help: "Number of workers in the current desired set",
		},
	)

	// Reconciliation Metrics
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agentfleet_reconcile_duration_seconds",
			Help:    "Duration of reconcile passes in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ReconcileEffects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_reconcile_effects_total",
			Help: "Total number of start/stop effects applied by reconciliation",
		},
		[]string{"effect"}, // effect: "start", "stop"
	)

	// Registry Metrics
	RegistryProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_registry_health_probes_total",
			Help: "Total number of registry health probes",
		},
		[]string{"result"}, // result: "healthy", "unhealthy"
	)

	RegistrationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_registration_attempts_total",
			Help: "Total number of registration calls",
		},
		[]string{"worker", "result"}, // result: "success", "failure"
	)

	RegistrationLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentfleet_registration_last_success_timestamp",
			Help: "Unix timestamp of the last successful registration",
		},
		[]string{"worker"},
	)

	// Fleet Document Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_config_reloads_total",
			Help: "Total number of fleet document reload attempts",
		},
		[]string{"result"}, // result: "success", "failure"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentfleet_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentfleet_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Status API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentfleet_api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentfleet_api_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentfleet_api_active_requests",
			Help: "Number of status API requests in flight",
		},
	)
)

// RecordLaunch records a worker launch attempt.
func RecordLaunch(worker string, err error) {
	WorkerLaunches.WithLabelValues(worker, resultLabel(err)).Inc()
}

// RecordCrash records a worker that exited on its own.
func RecordCrash(worker string) {
	WorkerCrashes.WithLabelValues(worker).Inc()
}

// RecordRestart records the outcome of a crash restart decision.
func RecordRestart(worker, result string) {
	WorkerRestarts.WithLabelValues(worker, result).Inc()
}

// RecordTermination records how a worker was stopped.
func RecordTermination(outcome string) {
	WorkerTerminations.WithLabelValues(outcome).Inc()
}

// SetFleetSize updates the running and desired gauges.
func SetFleetSize(running, desired int) {
	WorkersRunning.Set(float64(running))
	WorkersDesired.Set(float64(desired))
}

// RecordReconcile records one reconcile pass.
func RecordReconcile(duration time.Duration, starts, stops int) {
	ReconcileDuration.Observe(duration.Seconds())
	ReconcileEffects.WithLabelValues("start").Add(float64(starts))
	ReconcileEffects.WithLabelValues("stop").Add(float64(stops))
}

// RecordRegistryProbe records a registry health probe.
func RecordRegistryProbe(healthy bool) {
	if healthy {
		RegistryProbes.WithLabelValues("healthy").Inc()
		return
	}
	RegistryProbes.WithLabelValues("unhealthy").Inc()
}

// RecordRegistration records one registration call for worker.
func RecordRegistration(worker string, err error) {
	RegistrationAttempts.WithLabelValues(worker, resultLabel(err)).Inc()
	if err == nil {
		RegistrationLastSuccess.WithLabelValues(worker).Set(float64(time.Now().Unix()))
	}
}

// ForgetWorker drops per-worker series once a worker leaves the fleet.
func ForgetWorker(worker string) {
	RegistrationLastSuccess.DeleteLabelValues(worker)
}

// RecordConfigReload records a fleet document reload attempt.
func RecordConfigReload(success bool) {
	if success {
		ConfigReloads.WithLabelValues("success").Inc()
		return
	}
	ConfigReloads.WithLabelValues("failure").Inc()
}

// RecordAPIRequest records one status API request. route is the matched
// route pattern, not the raw path.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
