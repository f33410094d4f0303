// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"errors"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
)

// errCrashedAgain resolves a pending restart whose process died before the
// next liveness sweep.
var errCrashedAgain = errors.New("worker crashed after restart")

// RestartBreaker limits crash restarts of one worker.
//
// Each restart is a two-step breaker request: Allow is called before
// relaunching, and the returned done func is resolved on the next sweep
// (nil if the worker is alive, an error if it crashed again). After
// MaxConsecutiveCrashes failed restarts the breaker opens and restarts are
// suppressed for Cooldown; then one probe restart is allowed.
//
// A nil *RestartBreaker allows every restart.
type RestartBreaker struct {
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]
	name string
}

// NewRestartBreaker returns a breaker for worker, or nil when
// cfg.MaxConsecutiveCrashes is zero.
func NewRestartBreaker(worker string, cfg config.RestartConfig) *RestartBreaker {
	if cfg.MaxConsecutiveCrashes <= 0 {
		return nil
	}
	name := "restart-" + worker
	threshold := uint32(cfg.MaxConsecutiveCrashes) //nolint:gosec // validated non-negative

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	cb := gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures < threshold {
				return false
			}
			logging.Warn().
				Str("worker", worker).
				Uint32("consecutive_crashes", counts.ConsecutiveFailures).
				Msg("[RESTART BREAKER] Crash loop detected; suppressing restarts")
			return true
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("[RESTART BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &RestartBreaker{cb: cb, name: name}
}

// Allow asks permission to restart. On success the caller must eventually
// invoke done exactly once with the outcome of the restart.
func (b *RestartBreaker) Allow() (done func(error), err error) {
	if b == nil {
		return func(error) {}, nil
	}

	cbDone, err := b.cb.Allow()
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, err
	}

	return func(outcome error) {
		cbDone(outcome)
		if outcome != nil {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).
				Set(float64(b.cb.Counts().ConsecutiveFailures))
			return
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	}, nil
}

// State returns closed, half-open or open. A nil breaker is always closed.
func (b *RestartBreaker) State() string {
	if b == nil {
		return stateToString(gobreaker.StateClosed)
	}
	return stateToString(b.cb.State())
}

// IsSuppressed reports whether err came from an open breaker.
func IsSuppressed(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat converts breaker state to a gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts breaker state for logs and the status API.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
