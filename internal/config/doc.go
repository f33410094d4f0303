// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

// Package config loads and validates the supervisor's configuration.
//
// Configuration is layered with Koanf v2:
//
//  1. Built-in defaults (structs provider)
//  2. Optional YAML file: --config flag, AGENTFLEET_CONFIG, or the first of
//     DefaultConfigPaths that exists
//  3. Environment variables, through an explicit name mapping
//
// Example file:
//
//	fleet:
//	  path: agents/config.json
//	  watch_debounce: 1s
//	registry:
//	  port: 8000
//	  command: ["python3", "start_agent_discovery_engine.py"]
//	  max_retries: 12
//	registration:
//	  interval: 30s
//	process:
//	  graceful_timeout: 5s
//	restart:
//	  max_consecutive_crashes: 5
//	  cooldown: 30s
//	supervisor:
//	  stop_file: agents/stop_signal.txt
//	  credentials: openai
//	status:
//	  listen: 127.0.0.1:8090
//
// Environment overrides include DISCOVERY_PORT, DISCOVERY_COMMAND (comma
// separated), REGISTRATION_INTERVAL, GRACEFUL_TIMEOUT, AGENTFLEET_FLEET,
// AGENTFLEET_STOP_FILE, LOG_LEVEL and LOG_FORMAT.
//
// The fleet document itself is not part of this configuration; it is loaded
// and watched by package fleet.
package config
