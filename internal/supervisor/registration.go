// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"sync"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/agentfleet/internal/discovery"
	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/models"
	"github.com/tomtom215/agentfleet/internal/supervisor/services"
)

// Registrations starts and stops per-worker registration loops.
type Registrations interface {
	// Start ensures a loop is running for spec. A loop already running with
	// an equal spec is left alone; one with a different spec is replaced.
	Start(spec fleet.WorkerSpec)

	// Stop cancels the worker's loop and returns once it has exited.
	Stop(name string)

	// StopAll cancels every loop and waits for them.
	StopAll()

	// Status returns the loop's counters, if a loop exists.
	Status(name string) (models.RegistrationStatus, bool)
}

// registrationEntry is one running registration loop.
type registrationEntry struct {
	token   suture.ServiceToken
	spec    fleet.WorkerSpec
	service *services.RegistrationService
}

// RegistrationSet runs registration loops in the tree's registration layer.
type RegistrationSet struct {
	tree          *SupervisorTree
	registrar     services.Registrar
	advertiseHost string
	interval      time.Duration

	mu      sync.Mutex
	entries map[string]*registrationEntry
}

// NewRegistrationSet creates a set whose loops post to registrar.
func NewRegistrationSet(tree *SupervisorTree, registrar services.Registrar, advertiseHost string, interval time.Duration) *RegistrationSet {
	return &RegistrationSet{
		tree:          tree,
		registrar:     registrar,
		advertiseHost: advertiseHost,
		interval:      interval,
		entries:       make(map[string]*registrationEntry),
	}
}

// Start implements Registrations.
func (r *RegistrationSet) Start(spec fleet.WorkerSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[spec.Name]; ok {
		if existing.spec.Equal(spec) {
			return
		}
		r.removeLocked(spec.Name, existing)
	}

	svc := services.NewRegistrationService(discovery.CardFor(spec, r.advertiseHost), r.registrar, r.interval)
	token := r.tree.AddRegistrationService(svc)
	r.entries[spec.Name] = &registrationEntry{
		token:   token,
		spec:    spec,
		service: svc,
	}

	logging.Debug().Str("worker", spec.Name).Str("url", svc.Card().URL).Msg("Registration loop started")
}

// Stop implements Registrations.
func (r *RegistrationSet) Stop(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		r.removeLocked(name, e)
	}
}

// StopAll implements Registrations.
func (r *RegistrationSet) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		r.removeLocked(name, e)
	}
}

// Status implements Registrations.
func (r *RegistrationSet) Status(name string) (models.RegistrationStatus, bool) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()

	if !ok {
		return models.RegistrationStatus{}, false
	}
	return e.service.Status(), true
}

func (r *RegistrationSet) removeLocked(name string, e *registrationEntry) {
	delete(r.entries, name)
	if err := r.tree.RemoveRegistrationService(e.token); err != nil {
		logging.Warn().Err(err).Str("worker", name).Msg("Registration loop did not stop cleanly")
		return
	}
	logging.Debug().Str("worker", name).Msg("Registration loop stopped")
}
