// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package services

import (
	"context"
	"errors"
	"fmt"
)

// FleetWatcher is the fleet document watcher lifecycle.
//
// Satisfied by *fleet.Watcher.
type FleetWatcher interface {
	Run(ctx context.Context) error
}

// FleetWatchService runs the fleet document watcher under supervision.
//
// If the watch cannot be established (for example the document was deleted
// and not yet recreated), Serve returns the error and suture retries with
// backoff, so the watch resumes once the file is back.
type FleetWatchService struct {
	watcher FleetWatcher
	name    string
}

// NewFleetWatchService wraps watcher.
func NewFleetWatchService(watcher FleetWatcher) *FleetWatchService {
	return &FleetWatchService{
		watcher: watcher,
		name:    "fleet-watcher",
	}
}

// Serve implements suture.Service.
func (s *FleetWatchService) Serve(ctx context.Context) error {
	err := s.watcher.Run(ctx)
	if ctx.Err() != nil && (err == nil || errors.Is(err, ctx.Err())) {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("fleet watcher: %w", err)
	}
	return nil
}

// String implements fmt.Stringer for suture logs.
func (s *FleetWatchService) String() string {
	return s.name
}
