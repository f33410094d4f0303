// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

type signal int

const (
	sigTerm signal = iota
	sigKill
)

func setProcessGroup(*exec.Cmd) {}

// signalGroup has no process groups to work with here. The graceful request
// is reported as unsupported so Terminate escalates straight to Kill.
func signalGroup(cmd *exec.Cmd, sig signal) error {
	if cmd == nil || cmd.Process == nil {
		return errors.New("process not started")
	}
	if sig == sigTerm {
		return errors.New("graceful stop not supported on this platform")
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
