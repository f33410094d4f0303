// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

// Package logging provides centralized zerolog-based structured logging for Agentfleet.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("worker", "summarizer").Int("pid", pid).Msg("Worker started")
//	logging.Err(err).Msg("Registration failed")
//
//	// Correlated logging for one reconcile pass
//	ctx = logging.ContextWithNewCorrelationID(ctx)
//	logging.Ctx(ctx).Info().Msg("Reconcile started")
//
// # Configuration
//
// The supervisor configures logging from the logging section of its config
// file, overridable through LOG_LEVEL, LOG_FORMAT and LOG_CALLER.
//
// # Suture Integration
//
// SlogHandler adapts zerolog to slog so sutureslog can report supervision
// tree events (service panics, restarts, backoff) through the same logger:
//
//	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
//
// Always terminate log chains with .Msg() or .Send().
package logging
