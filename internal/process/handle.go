// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package process

import (
	"os/exec"
	"sync"
	"time"

	"github.com/tomtom215/agentfleet/internal/fleet"
)

// Handle is the runtime record of one launched worker process.
type Handle struct {
	spec      fleet.WorkerSpec
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	output    *OutputBuffer
	done      chan struct{}

	mu       sync.Mutex
	state    State
	exitErr  error
	exitedAt time.Time
}

// Spec returns the spec the worker was launched from.
func (h *Handle) Spec() fleet.WorkerSpec { return h.spec }

// Name returns the worker name.
func (h *Handle) Name() string { return h.spec.Name }

// PID returns the OS process id (also the process group id).
func (h *Handle) PID() int { return h.pid }

// StartedAt returns the launch time. It carries a monotonic reading.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Uptime returns how long the process has been (or was) alive.
func (h *Handle) Uptime() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exitedAt.IsZero() {
		return h.exitedAt.Sub(h.startedAt)
	}
	return time.Since(h.startedAt)
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ExitErr returns the error from Wait, or nil if the process exited cleanly
// or is still running.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Output returns the retained trailing output lines.
func (h *Handle) Output() []string {
	return h.output.Lines()
}

// exited reports whether Done is closed.
func (h *Handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// transition moves to next if legal and reports whether it did.
func (h *Handle) transition(next State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.state.CanTransition(next) {
		return false
	}
	h.state = next
	return true
}

// markExited records the process exit. A process that exits while not being
// stopped is considered crashed.
func (h *Handle) markExited(err error) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exitErr = err
	h.exitedAt = time.Now()
	if h.state == StateLaunching || h.state == StateRunning {
		h.state = StateCrashed
	}
	return h.state
}
