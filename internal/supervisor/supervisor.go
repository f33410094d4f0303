// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/discovery"
	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/models"
	"github.com/tomtom215/agentfleet/internal/process"
	"github.com/tomtom215/agentfleet/internal/supervisor/services"
)

// ErrNilConfig is returned by New when no configuration is given.
var ErrNilConfig = errors.New("supervisor configuration cannot be nil")

// Bootstrapper brings up the discovery registry.
//
// Satisfied by *discovery.Bootstrapper.
type Bootstrapper interface {
	EnsureRegistryRunning(ctx context.Context) error
	Endpoint() discovery.Endpoint
	Launched() bool
	Stop(graceful time.Duration)
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// StatusHandlerFunc builds the status API handler for a supervisor. It is
// called once, at the end of New.
type StatusHandlerFunc func(s *Supervisor) http.Handler

// WithStatusHandler sets the builder for the handler served on status.listen.
func WithStatusHandler(build StatusHandlerFunc) Option {
	return func(s *Supervisor) { s.buildStatus = build }
}

// WithBootstrapper replaces the registry bootstrapper.
func WithBootstrapper(b Bootstrapper) Option {
	return func(s *Supervisor) { s.boot = b }
}

// WithRegistrar replaces the registry client used by registration loops.
func WithRegistrar(r services.Registrar) Option {
	return func(s *Supervisor) { s.registrar = r }
}

// WithLookupEnv replaces os.LookupEnv for the credential check.
func WithLookupEnv(fn config.LookupFunc) Option {
	return func(s *Supervisor) { s.lookupEnv = fn }
}

// Supervisor runs an agent fleet: it bootstraps the registry, keeps the
// running workers in line with the fleet document, restarts crashed
// workers, and shuts everything down on a signal or the stop file.
type Supervisor struct {
	cfg        *config.Config
	tree       *SupervisorTree
	boot       Bootstrapper
	registrar  services.Registrar
	launcher   *process.Launcher
	regs       *RegistrationSet
	reconciler *Reconciler
	limiter    *rate.Limiter
	reloads    chan []fleet.WorkerSpec

	buildStatus   StatusHandlerFunc
	statusHandler http.Handler
	lookupEnv     config.LookupFunc
}

// New wires a supervisor from cfg. Nothing is started until Run.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	tree, err := NewSupervisorTree(logging.NewSlogLogger(), TreeConfig{
		ShutdownTimeout: cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	s := &Supervisor{
		cfg:       cfg,
		tree:      tree,
		reloads:   make(chan []fleet.WorkerSpec, 1),
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.boot == nil {
		s.boot = discovery.NewBootstrapper(cfg.Registry, process.Options{
			OutputLines:  cfg.Process.OutputLines,
			Interpreters: cfg.Process.Interpreters,
		})
	}
	if s.registrar == nil {
		s.registrar = discovery.NewClient(s.boot.Endpoint(), cfg.Registration.Timeout)
	}

	limit := rate.Inf
	if cfg.Fleet.MinReloadInterval > 0 {
		limit = rate.Every(cfg.Fleet.MinReloadInterval)
	}
	s.limiter = rate.NewLimiter(limit, 1)

	s.launcher = process.NewLauncher(process.Options{
		WorkDir:      cfg.Fleet.WorkDir,
		OutputLines:  cfg.Process.OutputLines,
		Interpreters: cfg.Process.Interpreters,
	})
	s.regs = NewRegistrationSet(tree, s.registrar, cfg.Registration.AdvertiseHost, cfg.Registration.Interval)
	s.reconciler = NewReconciler(s.launcher, s.regs, ReconcilerConfig{
		GracefulTimeout: cfg.Process.GracefulTimeout,
		Restart:         cfg.Restart,
	})

	if s.buildStatus != nil {
		s.statusHandler = s.buildStatus(s)
	}

	return s, nil
}

// Run starts the fleet and blocks until shutdown completes. It returns an
// error only for fatal startup problems: missing credentials, an unreadable
// fleet document, or a registry that is unavailable or whose port is taken.
// Cancelling ctx (SIGINT/SIGTERM) or creating the stop file shuts down
// cleanly and returns nil.
func (s *Supervisor) Run(ctx context.Context) error {
	log := logging.WithComponent("supervisor")

	provider, err := config.CheckCredentials(s.cfg.Supervisor.Credentials, s.lookupEnv)
	if err != nil {
		return err
	}
	log.Info().Str("provider", provider).Msg("Worker credentials present")

	desired, err := fleet.Load(s.cfg.Fleet.Path)
	if err != nil {
		return err
	}

	s.clearStopFile("Removed stale stop file")

	if err := s.boot.EnsureRegistryRunning(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info().Msg("Shutdown requested during registry bootstrap")
			return nil
		}
		return fmt.Errorf("bootstrap registry: %w", err)
	}

	treeCtx, cancelTree := context.WithCancel(context.Background())
	defer cancelTree()
	treeDone := s.tree.ServeBackground(treeCtx)

	s.reconciler.Apply(ctx, desired)

	watcher := fleet.NewWatcher(s.cfg.Fleet.Path, s.cfg.Fleet.WatchDebounce, s.onFleetChange)
	s.tree.AddControlService(services.NewFleetWatchService(watcher))

	if s.cfg.Status.Enabled && s.statusHandler != nil {
		server := &http.Server{
			Addr:              s.cfg.Status.Listen,
			Handler:           s.statusHandler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.tree.AddControlService(services.NewHTTPServerService(server, s.cfg.Supervisor.ShutdownTimeout))
	}

	log.Info().
		Int("workers", len(desired)).
		Str("fleet", s.cfg.Fleet.Path).
		Str("stop_file", s.cfg.Supervisor.StopFile).
		Msg("Fleet running")

	reason := s.loop(ctx)
	log.Info().Str("reason", reason).Msg("Shutting down")

	s.shutdown(cancelTree, treeDone)
	log.Info().Msg("Shutdown complete")
	return nil
}

// loop is the single owner of reconciliation after startup. It returns the
// shutdown reason.
func (s *Supervisor) loop(ctx context.Context) string {
	liveness := time.NewTicker(s.cfg.Process.LivenessInterval)
	defer liveness.Stop()

	reloadTimer := time.NewTimer(time.Hour)
	reloadTimer.Stop()
	defer reloadTimer.Stop()

	var pending []fleet.WorkerSpec
	hasPending, armed := false, false

	for {
		select {
		case <-ctx.Done():
			return "signal"

		case <-liveness.C:
			if s.stopRequested() {
				return "stop file"
			}
			s.reconciler.Sweep(ctx)

		case specs := <-s.reloads:
			pending, hasPending = specs, true
			if !armed {
				reloadTimer.Reset(s.limiter.Reserve().Delay())
				armed = true
			}

		case <-reloadTimer.C:
			armed = false
			if hasPending {
				s.reconciler.Apply(ctx, pending)
				pending, hasPending = nil, false
			}
		}
	}
}

// onFleetChange hands a reloaded fleet to the run loop, replacing any
// reload the loop has not picked up yet.
func (s *Supervisor) onFleetChange(_ context.Context, specs []fleet.WorkerSpec) {
	for {
		select {
		case s.reloads <- specs:
			return
		default:
		}
		select {
		case <-s.reloads:
		default:
		}
	}
}

func (s *Supervisor) shutdown(cancelTree context.CancelFunc, treeDone <-chan error) {
	s.reconciler.StopAll()

	cancelTree()
	select {
	case <-treeDone:
	case <-time.After(s.cfg.Supervisor.ShutdownTimeout):
		report, _ := s.tree.UnstoppedServiceReport()
		logging.Warn().Int("unstopped", len(report)).Msg("Supervisor tree did not stop in time")
	}

	if s.boot.Launched() {
		s.boot.Stop(s.cfg.Process.GracefulTimeout)
	}

	s.clearStopFile("Removed stop file")
}

func (s *Supervisor) stopRequested() bool {
	if s.cfg.Supervisor.StopFile == "" {
		return false
	}
	_, err := os.Stat(s.cfg.Supervisor.StopFile)
	return err == nil
}

func (s *Supervisor) clearStopFile(msg string) {
	path := s.cfg.Supervisor.StopFile
	if path == "" {
		return
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		logging.Info().Str("path", path).Msg(msg)
	case errors.Is(err, os.ErrNotExist):
	default:
		logging.Warn().Err(err).Str("path", path).Msg("Could not remove stop file")
	}
}

// Status returns the fleet view served by the status API.
func (s *Supervisor) Status() models.FleetStatus {
	workers := s.reconciler.Snapshot()
	running := 0
	for _, w := range workers {
		if w.State == models.WorkerStateRunning {
			running++
		}
	}
	return models.FleetStatus{
		Desired: len(workers),
		Running: running,
		Registry: models.RegistryStatus{
			URL:      s.boot.Endpoint().BaseURL(),
			Launched: s.boot.Launched(),
		},
		Workers: workers,
	}
}

// Worker returns one worker's status including its recent output.
func (s *Supervisor) Worker(name string) (models.WorkerStatus, bool) {
	return s.reconciler.Worker(name)
}
