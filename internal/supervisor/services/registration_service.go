// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agentfleet/internal/discovery"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
	"github.com/tomtom215/agentfleet/internal/models"
)

// Registrar sends an agent card to the discovery registry.
//
// Satisfied by *discovery.Client.
type Registrar interface {
	Register(ctx context.Context, card discovery.AgentCard) error
}

// RegistrationService keeps one worker registered with the discovery registry.
//
// It registers immediately when started and then once per interval until
// its context is canceled. A failed attempt is logged and counted; the loop
// never gives up and never returns an error, so suture does not restart it.
type RegistrationService struct {
	card      discovery.AgentCard
	registrar Registrar
	interval  time.Duration
	log       zerolog.Logger

	mu     sync.Mutex
	status models.RegistrationStatus
}

// NewRegistrationService creates a registration loop for card.
func NewRegistrationService(card discovery.AgentCard, registrar Registrar, interval time.Duration) *RegistrationService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RegistrationService{
		card:      card,
		registrar: registrar,
		interval:  interval,
		log:       logging.WithComponent("registration").With().Str("worker", card.Name).Logger(),
	}
}

// Serve implements suture.Service.
func (s *RegistrationService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.attempt(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.attempt(ctx)
		}
	}
}

func (s *RegistrationService) attempt(ctx context.Context) {
	err := s.registrar.Register(ctx, s.card)
	if ctx.Err() != nil {
		// canceled mid-request; not a registry failure
		return
	}
	metrics.RecordRegistration(s.card.Name, err)

	now := time.Now().UTC()
	s.mu.Lock()
	s.status.Attempts++
	s.status.LastAttemptAt = &now
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
	} else {
		s.status.LastSuccessAt = &now
		s.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn().Err(err).Str("url", s.card.URL).Msg("Registration failed; will retry")
		return
	}
	s.log.Debug().Str("url", s.card.URL).Msg("Registered with discovery registry")
}

// Card returns the card this loop advertises.
func (s *RegistrationService) Card() discovery.AgentCard {
	return s.card
}

// Status returns a copy of the loop's counters.
func (s *RegistrationService) Status() models.RegistrationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// String implements fmt.Stringer for suture logs.
func (s *RegistrationService) String() string {
	return "registration-" + s.card.Name
}
