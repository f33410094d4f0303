// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRequestStop_Timeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stop_signal.txt")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := RequestStop(ctx, path, 10*time.Millisecond)
	if !errors.Is(err, ErrStopNotAcknowledged) {
		t.Fatalf("expected ErrStopNotAcknowledged, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("stop file should have been written: %v", statErr)
	}
}

func TestRequestStop_Acknowledged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop_signal.txt")

	// consume the file the way the run loop does
	go func() {
		for i := 0; i < 200; i++ {
			if err := os.Remove(path); err == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := RequestStop(ctx, path, 10*time.Millisecond); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}
}

func TestRequestStop_NoPath(t *testing.T) {
	if err := RequestStop(context.Background(), "", 0); err == nil {
		t.Error("expected an error without a stop file path")
	}
}
