// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package models defines the data structures served by the status API.

  - APIResponse, Metadata, APIError: the response envelope
  - FleetStatus: desired and running counts, registry info, per-worker status
  - WorkerStatus: process state, PID, uptime, restart count, breaker state,
    registration summary and (in the single-worker view) recent output
  - RegistrationStatus: attempts, failures and timestamps of the registration loop

All types serialize with snake_case JSON keys and are encoded with
github.com/goccy/go-json by the api package.
*/
package models
