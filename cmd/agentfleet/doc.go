// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Agentfleet supervises a fleet of agent worker processes.

Usage:

	agentfleet run       [--config agentfleet.yaml] [--log-level debug]
	agentfleet stop      [--config agentfleet.yaml] [--wait 30s]
	agentfleet validate  [--config agentfleet.yaml]
	agentfleet version

run blocks until SIGINT, SIGTERM or the stop file. It exits non-zero only
when startup fails: missing credentials, an unreadable fleet document or an
unavailable discovery registry.

Configuration is loaded by internal/config from built-in defaults, an
optional YAML file and environment variables, in that order.
*/
package main
