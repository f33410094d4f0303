// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

// Package process launches worker processes and stops them.
//
// Each worker runs in its own process group with no stdin. Its combined
// stdout/stderr goes to a bounded OutputBuffer that keeps the last lines for
// the status API and mirrors them to the debug log.
//
// Terminate is graceful-then-forced: SIGTERM to the group, a bounded wait,
// then SIGKILL. It never fails from the caller's point of view; problems are
// logged and the handle always ends Stopped.
//
// The Launcher keeps at most one live Handle per worker name, so launching a
// running worker again returns the existing handle.
package process
