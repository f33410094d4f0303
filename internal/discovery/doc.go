// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

// Package discovery talks to the agent discovery registry.
//
// The Bootstrapper runs once at startup. It reuses a registry that already
// answers GET <health_path>, refuses to start when the port is taken by
// something else, and otherwise launches the configured registry command and
// polls it until healthy:
//
//	boot := discovery.NewBootstrapper(cfg.Registry, process.Options{})
//	if err := boot.EnsureRegistryRunning(ctx); err != nil {
//	    return err // ErrRegistryUnavailable or ErrPortConflict
//	}
//	defer boot.Stop(cfg.Process.GracefulTimeout)
//
// The Client posts AgentCards to the registry. Registration is idempotent on
// the registry side, so callers simply repeat it on an interval.
package discovery
