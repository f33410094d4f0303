// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrStopNotAcknowledged is returned by RequestStop when the stop file is
// still present after the wait.
var ErrStopNotAcknowledged = errors.New("stop request not acknowledged")

// RequestStop asks a running supervisor to shut down by creating its stop
// file, then waits until the supervisor removes it or ctx ends. A zero poll
// interval defaults to 200ms.
func RequestStop(ctx context.Context, path string, poll time.Duration) error {
	if path == "" {
		return errors.New("no stop file configured")
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create stop file directory: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(path, []byte(stamp), 0o600); err != nil {
		return fmt.Errorf("write stop file: %w", err)
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s still present: %w", ErrStopNotAcknowledged, path, ctx.Err())
		case <-ticker.C:
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return nil
			}
		}
	}
}
