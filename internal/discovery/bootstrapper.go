// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package discovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
	"github.com/tomtom215/agentfleet/internal/probe"
	"github.com/tomtom215/agentfleet/internal/process"
)

var (
	// ErrRegistryUnavailable means the registry could not be reached or brought up.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrPortConflict means the registry port is held by something that does
	// not answer the health check.
	ErrPortConflict = errors.New("registry port in use by another process")
)

// RegistryWorkerName is the process name used for a registry the supervisor launches.
const RegistryWorkerName = "registry"

// UnavailableError reports a registry that never became healthy, together
// with the output the launched registry produced.
type UnavailableError struct {
	URL      string
	Attempts int
	Output   []string
	Err      error
}

func (e *UnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "registry at %s not healthy after %d checks", e.URL, e.Attempts)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Output) > 0 {
		b.WriteString("\nregistry output:\n  ")
		b.WriteString(strings.Join(e.Output, "\n  "))
	}
	return b.String()
}

// Unwrap exposes ErrRegistryUnavailable and the underlying cause, if any.
func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRegistryUnavailable}
	}
	return []error{ErrRegistryUnavailable, e.Err}
}

// Option customizes a Bootstrapper.
type Option func(*Bootstrapper)

// WithProber replaces the HTTP health prober.
func WithProber(p probe.Prober) Option {
	return func(b *Bootstrapper) { b.prober = p }
}

// WithPortCheck replaces the port occupancy check.
func WithPortCheck(fn func(host string, port int) bool) Option {
	return func(b *Bootstrapper) { b.portInUse = fn }
}

// Bootstrapper makes sure the discovery registry is reachable before any
// worker is launched, starting it as a child process when needed.
type Bootstrapper struct {
	cfg       config.RegistryConfig
	endpoint  Endpoint
	prober    probe.Prober
	portInUse func(host string, port int) bool
	launcher  *process.Launcher
	log       zerolog.Logger

	mu     sync.Mutex
	handle *process.Handle
}

// NewBootstrapper creates a bootstrapper for the configured registry.
// launch configures the launcher used for the registry child process.
func NewBootstrapper(cfg config.RegistryConfig, launch process.Options, opts ...Option) *Bootstrapper {
	if launch.WorkDir == "" {
		launch.WorkDir = cfg.WorkDir
	}
	if launch.WorkDir == "" {
		launch.WorkDir = "."
	}
	launch.Component = "registry"

	b := &Bootstrapper{
		cfg:       cfg,
		endpoint:  EndpointFromConfig(cfg),
		prober:    probe.NewHTTPProber(cfg.ProbeTimeout),
		portInUse: probe.PortInUse,
		launcher:  process.NewLauncher(launch),
		log:       logging.WithComponent("bootstrap"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Endpoint returns the registry endpoint.
func (b *Bootstrapper) Endpoint() Endpoint {
	return b.endpoint
}

// EnsureRegistryRunning returns nil once the registry answers its health
// check. A registry that is already healthy is used as-is; otherwise the
// configured command is launched and polled until healthy or out of retries.
func (b *Bootstrapper) EnsureRegistryRunning(ctx context.Context) error {
	url := b.endpoint.HealthURL()

	if err := b.check(ctx); err == nil {
		b.log.Info().Str("url", url).Msg("Registry already running")
		return nil
	}

	if b.portInUse(b.endpoint.Host, b.endpoint.Port) {
		return fmt.Errorf("%w: %s", ErrPortConflict, b.endpoint.Address())
	}

	if len(b.cfg.Command) == 0 {
		return &UnavailableError{
			URL: url,
			Err: errors.New("not reachable and no launch command configured"),
		}
	}

	h, err := b.launcher.Launch(ctx, b.registrySpec())
	if err != nil {
		return &UnavailableError{URL: url, Err: err}
	}
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()

	b.log.Info().
		Int("pid", h.PID()).
		Int("max_retries", b.cfg.MaxRetries).
		Dur("poll_interval", b.cfg.PollInterval).
		Msg("Launched registry; waiting for health")

	timer := time.NewTimer(b.cfg.PollInterval)
	defer timer.Stop()

	done := h.Done()
	for attempt := 1; attempt <= b.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			b.Stop(b.cfg.ProbeTimeout)
			return ctx.Err()
		case <-done:
			if exitErr := h.ExitErr(); exitErr != nil {
				output := h.Output()
				b.Stop(0)
				return &UnavailableError{URL: url, Attempts: attempt - 1, Output: output, Err: exitErr}
			}
			// exited cleanly; a wrapper that daemonized the registry keeps
			// polling on the timer alone
			done = nil
		case <-timer.C:
		}

		if err := b.check(ctx); err == nil {
			b.log.Info().Int("attempt", attempt).Str("url", url).Msg("Registry healthy")
			return nil
		}
		b.log.Debug().Int("attempt", attempt).Msg("Registry not healthy yet")
		timer.Reset(b.cfg.PollInterval)
	}

	output := h.Output()
	b.Stop(b.cfg.ProbeTimeout)
	return &UnavailableError{URL: url, Attempts: b.cfg.MaxRetries, Output: output}
}

// Launched reports whether this bootstrapper started the registry process.
func (b *Bootstrapper) Launched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle != nil
}

// Stop terminates the registry if this bootstrapper launched it. A registry
// that was already running when the supervisor started is left alone.
func (b *Bootstrapper) Stop(graceful time.Duration) {
	b.mu.Lock()
	h := b.handle
	b.handle = nil
	b.mu.Unlock()

	if h == nil {
		return
	}
	b.launcher.Terminate(h, graceful)
}

func (b *Bootstrapper) check(ctx context.Context) error {
	err := b.prober.Check(ctx, b.endpoint.HealthURL())
	metrics.RecordRegistryProbe(err == nil)
	return err
}

func (b *Bootstrapper) registrySpec() fleet.WorkerSpec {
	return fleet.WorkerSpec{
		Name: RegistryWorkerName,
		File: b.cfg.Command[0],
		Args: append([]string(nil), b.cfg.Command[1:]...),
		Port: b.cfg.Port,
		Env:  map[string]string{"DISCOVERY_PORT": strconv.Itoa(b.cfg.Port)},
	}
}
