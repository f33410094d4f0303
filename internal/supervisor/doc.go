// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

/*
Package supervisor keeps a fleet of agent worker processes converged on the
fleet document.

# Overview

A Supervisor owns three cooperating pieces:

  - Reconciler: diffs the desired worker specs against the tracked processes
    and applies the plan (stop, then start). It is the only code that
    launches or terminates workers after startup.
  - RegistrationSet: one registration service per running worker, hosted in
    the registration layer of the suture tree.
  - SupervisorTree: a suture v4 tree for the long-running services.

The tree looks like this:

	RootSupervisor ("agentfleet")
	├── RegistrationSupervisor ("registration-layer")
	│   └── RegistrationService per worker ("registration-<name>")
	└── ControlSupervisor ("control-layer")
	    ├── FleetWatchService ("fleet-watcher")
	    └── HTTPServerService ("status-server", if status.enabled)

Worker processes are not suture services. They are plain child processes
owned by process.Launcher and checked by the run loop on every liveness tick.

# Run Loop

Run performs the startup sequence (credential check, fleet load, registry
bootstrap, initial apply) and then enters a single select loop:

  - liveness tick: check the stop file, then Sweep for crashed workers
  - fleet reload: debounced by the watcher, rate limited by
    fleet.min_reload_interval, latest document wins
  - ctx.Done: SIGINT or SIGTERM from cmd/agentfleet

# Crash Loops

Each worker carries a RestartBreaker, a gobreaker TwoStepCircuitBreaker. A
restart is reported as failed when the worker is found dead again at the
next sweep, and as successful once it survives one liveness interval. After
restart.max_consecutive_crashes failures the breaker opens and restarts are
suppressed for restart.cooldown. A single probe restart is allowed when the
breaker goes half-open.

# Shutdown

Shutdown order is fixed:

 1. registrations are removed from the tree (RemoveAndWait)
 2. workers are terminated concurrently, each within process.graceful_timeout
 3. the tree is cancelled, stopping the watcher and status server
 4. the registry is stopped if this supervisor launched it
 5. the stop file is removed

RequestStop is the client side of the stop file protocol used by
"agentfleet stop".

# Thread Safety

Supervisor.Status and Supervisor.Worker may be called from any goroutine.
Reconciler serialises Apply, Sweep and StopAll; its read methods take a
read lock only.
*/
package supervisor
