// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package models

import "time"

// WorkerState values reported for a worker. The first five mirror the process
// lifecycle; pending means desired but with no process yet (launch failed or
// restart suppressed before any process started).
const (
	WorkerStatePending   = "pending"
	WorkerStateLaunching = "launching"
	WorkerStateRunning   = "running"
	WorkerStateStopping  = "stopping"
	WorkerStateStopped   = "stopped"
	WorkerStateCrashed   = "crashed"
)

// WorkerStatus is the observable state of one desired worker.
type WorkerStatus struct {
	Name          string              `json:"name"`
	Port          int                 `json:"port"`
	Version       string              `json:"version,omitempty"`
	Tags          []string            `json:"tags,omitempty"`
	State         string              `json:"state"`
	PID           int                 `json:"pid,omitempty"`
	StartedAt     *time.Time          `json:"started_at,omitempty"`
	UptimeSeconds float64             `json:"uptime_seconds,omitempty"`
	Restarts      int                 `json:"restarts"`
	LastExit      string              `json:"last_exit,omitempty"`
	LastError     string              `json:"last_error,omitempty"`
	Breaker       string              `json:"restart_breaker,omitempty"`
	Registration  *RegistrationStatus `json:"registration,omitempty"`
	Output        []string            `json:"output,omitempty"`
}

// RegistrationStatus summarizes a worker's registration loop.
type RegistrationStatus struct {
	Attempts      int        `json:"attempts"`
	Failures      int        `json:"failures"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// RegistryStatus describes the discovery registry the fleet registers with.
type RegistryStatus struct {
	URL      string `json:"url"`
	Launched bool   `json:"launched"`
}

// FleetStatus is the status API's top-level view.
type FleetStatus struct {
	Desired  int            `json:"desired"`
	Running  int            `json:"running"`
	Registry RegistryStatus `json:"registry"`
	Workers  []WorkerStatus `json:"workers"`
}
