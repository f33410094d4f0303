// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package process

// State is a worker's lifecycle state.
//
//	Launching -> Running -> Stopping -> Stopped
//	    |           |
//	    +-----------+----> Crashed -> Launching (restart) | Stopped
type State int

const (
	StateLaunching State = iota
	StateRunning
	StateStopping
	StateStopped
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	StateLaunching: {StateRunning, StateStopping, StateCrashed},
	StateRunning:   {StateStopping, StateCrashed},
	StateStopping:  {StateStopped},
	StateCrashed:   {StateLaunching, StateStopped},
	StateStopped:   nil,
}

// CanTransition reports whether moving from s to next is legal. Stopped is
// terminal; Stopping is only entered through explicit termination.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state has no live process behind it.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCrashed
}
