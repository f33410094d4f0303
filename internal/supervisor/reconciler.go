// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
	"github.com/tomtom215/agentfleet/internal/models"
	"github.com/tomtom215/agentfleet/internal/process"
)

// crashOutputLines is how much trailing output is logged with a crash.
const crashOutputLines = 10

// Launcher starts and stops worker processes.
//
// Satisfied by *process.Launcher.
type Launcher interface {
	Launch(ctx context.Context, spec fleet.WorkerSpec) (*process.Handle, error)
	Terminate(h *process.Handle, graceful time.Duration) process.Outcome
	IsAlive(h *process.Handle) bool
}

// ReconcilerConfig holds reconciler configuration.
type ReconcilerConfig struct {
	// GracefulTimeout bounds the SIGTERM wait before a worker is killed.
	GracefulTimeout time.Duration

	// Restart configures the per-worker crash restart breaker.
	Restart config.RestartConfig
}

// trackedWorker is the reconciler's record of one desired worker.
type trackedWorker struct {
	spec      fleet.WorkerSpec
	handle    *process.Handle
	breaker   *RestartBreaker
	restarts  int
	lastExit  string
	lastError string

	// crashSeen is the handle whose crash has already been counted.
	crashSeen *process.Handle

	// pending resolves the breaker request of the latest restart.
	pending func(error)
}

// Reconciler owns the fleet state: the desired specs and the process handle
// of every tracked worker.
//
// Thread Safety:
//   - opMu serializes Apply, Sweep and StopAll
//   - mu guards the maps and worker fields for Snapshot readers
//   - worker fields are written with both held, so holding opMu alone is
//     enough to read them
type Reconciler struct {
	launcher Launcher
	regs     Registrations
	cfg      ReconcilerConfig

	opMu sync.Mutex

	mu      sync.RWMutex
	desired []fleet.WorkerSpec
	workers map[string]*trackedWorker
}

// NewReconciler creates a reconciler with an empty fleet.
func NewReconciler(launcher Launcher, regs Registrations, cfg ReconcilerConfig) *Reconciler {
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	return &Reconciler{
		launcher: launcher,
		regs:     regs,
		cfg:      cfg,
		workers:  make(map[string]*trackedWorker),
	}
}

// Apply converges the running fleet on desired and returns the plan it
// carried out. All stops (registration first, then the process) happen
// before any start (process first, then registration). Launch failures are
// logged; the worker stays desired and is retried by Sweep.
func (r *Reconciler) Apply(ctx context.Context, desired []fleet.WorkerSpec) Plan {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx)
	start := time.Now()

	r.mu.RLock()
	observed := make(map[string]Observed, len(r.workers))
	for name, w := range r.workers {
		observed[name] = Observed{Spec: w.spec, Alive: r.launcher.IsAlive(w.handle)}
	}
	r.mu.RUnlock()

	plan := Diff(desired, observed)

	wanted := make(map[string]struct{}, len(desired))
	for _, spec := range desired {
		wanted[spec.Name] = struct{}{}
	}

	if !plan.Empty() {
		log.Info().
			Strs("start", plan.StartNames()).
			Strs("stop", plan.Stop).
			Int("desired", len(desired)).
			Msg("Reconciling fleet")
	}

	for _, name := range plan.Stop {
		_, keep := wanted[name]
		r.stopWorker(ctx, name, !keep)
	}
	for _, spec := range plan.Start {
		r.startWorker(ctx, spec)
	}

	r.mu.Lock()
	r.desired = append([]fleet.WorkerSpec(nil), desired...)
	r.mu.Unlock()

	r.updateGauges()
	metrics.RecordReconcile(time.Since(start), len(plan.Start), len(plan.Stop))
	return plan
}

// Sweep checks every tracked worker. A worker alive since its last restart
// resolves that restart as successful; a dead worker is restarted if its
// breaker allows. Sweep returns the names it restarted.
func (r *Reconciler) Sweep(ctx context.Context) []string {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	var restarted []string
	for _, w := range r.trackedSorted() {
		if r.launcher.IsAlive(w.handle) {
			if w.pending != nil {
				w.pending(nil)
				w.pending = nil
			}
			continue
		}
		if r.restart(ctx, w) {
			restarted = append(restarted, w.spec.Name)
		}
	}

	r.updateGauges()
	return restarted
}

// StopAll cancels every registration loop, then terminates every worker
// concurrently. The fleet is empty afterwards.
func (r *Reconciler) StopAll() {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.regs.StopAll()

	var wg sync.WaitGroup
	for _, w := range r.trackedSorted() {
		if w.handle == nil {
			continue
		}
		wg.Add(1)
		go func(h *process.Handle) {
			defer wg.Done()
			r.launcher.Terminate(h, r.cfg.GracefulTimeout)
		}(w.handle)
	}
	wg.Wait()

	r.mu.Lock()
	r.workers = make(map[string]*trackedWorker)
	r.desired = nil
	r.mu.Unlock()

	metrics.SetFleetSize(0, 0)
	logging.Info().Msg("All workers stopped")
}

// Snapshot returns the status of every desired worker, sorted by name.
func (r *Reconciler) Snapshot() []models.WorkerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.WorkerStatus, 0, len(r.desired))
	for _, spec := range r.desired {
		out = append(out, r.statusLocked(spec, r.workers[spec.Name], false))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Worker returns one desired worker's status including its recent output.
func (r *Reconciler) Worker(name string) (models.WorkerStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, spec := range r.desired {
		if spec.Name == name {
			return r.statusLocked(spec, r.workers[name], true), true
		}
	}
	return models.WorkerStatus{}, false
}

func (r *Reconciler) stopWorker(ctx context.Context, name string, forget bool) {
	log := logging.Ctx(ctx)

	r.mu.RLock()
	w := r.workers[name]
	r.mu.RUnlock()

	r.regs.Stop(name)

	if w != nil && w.handle != nil {
		outcome := r.launcher.Terminate(w.handle, r.cfg.GracefulTimeout)
		log.Debug().Str("worker", name).Str("outcome", string(outcome)).Msg("Worker terminated")
	}

	r.mu.Lock()
	delete(r.workers, name)
	r.mu.Unlock()

	if forget {
		metrics.ForgetWorker(name)
	}
}

func (r *Reconciler) startWorker(ctx context.Context, spec fleet.WorkerSpec) {
	r.mu.Lock()
	w, tracked := r.workers[spec.Name]
	if !tracked {
		w = &trackedWorker{
			spec:    spec,
			breaker: NewRestartBreaker(spec.Name, r.cfg.Restart),
		}
		r.workers[spec.Name] = w
	}
	r.mu.Unlock()

	// a tracked worker with an unchanged spec is dead, not new
	if tracked {
		r.restart(ctx, w)
		return
	}

	h, err := r.launcher.Launch(ctx, spec)
	if err != nil {
		r.mu.Lock()
		w.lastError = err.Error()
		r.mu.Unlock()
		logging.Ctx(ctx).Error().Err(err).Str("worker", spec.Name).Msg("Worker launch failed; will retry")
		return
	}

	r.mu.Lock()
	w.handle = h
	w.lastError = ""
	r.mu.Unlock()

	r.regs.Start(spec)
}

// restart relaunches a dead worker through its breaker and reports whether
// a new process was started.
func (r *Reconciler) restart(ctx context.Context, w *trackedWorker) bool {
	log := logging.Ctx(ctx).With().Str("worker", w.spec.Name).Logger()

	if h := w.handle; h != nil && h != w.crashSeen {
		exit := exitDescription(h)
		r.mu.Lock()
		w.crashSeen = h
		w.lastExit = exit
		r.mu.Unlock()

		r.regs.Stop(w.spec.Name)
		metrics.RecordCrash(w.spec.Name)
		log.Warn().
			Int("pid", h.PID()).
			Str("exit", exit).
			Dur("uptime", h.Uptime()).
			Strs("output_tail", tail(h.Output(), crashOutputLines)).
			Msg("Worker crashed")
	}

	if w.pending != nil {
		w.pending(errCrashedAgain)
		w.pending = nil
	}

	done, err := w.breaker.Allow()
	if err != nil {
		metrics.RecordRestart(w.spec.Name, "suppressed")
		log.Debug().Err(err).Msg("Restart suppressed by breaker")
		return false
	}

	h, err := r.launcher.Launch(ctx, w.spec)
	if err != nil {
		done(err)
		metrics.RecordRestart(w.spec.Name, "failed")
		r.mu.Lock()
		w.lastError = err.Error()
		r.mu.Unlock()
		log.Error().Err(err).Msg("Worker restart failed")
		return false
	}

	w.pending = done
	r.mu.Lock()
	w.handle = h
	w.restarts++
	w.lastError = ""
	r.mu.Unlock()

	metrics.RecordRestart(w.spec.Name, "restarted")
	log.Info().Int("pid", h.PID()).Msg("Worker restarted")

	r.regs.Start(w.spec)
	return true
}

func (r *Reconciler) trackedSorted() []*trackedWorker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*trackedWorker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].spec.Name < out[j].spec.Name })
	return out
}

func (r *Reconciler) updateGauges() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	running := 0
	for _, w := range r.workers {
		if r.launcher.IsAlive(w.handle) {
			running++
		}
	}
	metrics.SetFleetSize(running, len(r.desired))
}

func (r *Reconciler) statusLocked(spec fleet.WorkerSpec, w *trackedWorker, withOutput bool) models.WorkerStatus {
	st := models.WorkerStatus{
		Name:    spec.Name,
		Port:    spec.Port,
		Version: spec.Version,
		Tags:    spec.Tags,
		State:   models.WorkerStatePending,
	}
	if w == nil {
		return st
	}

	st.Restarts = w.restarts
	st.LastExit = w.lastExit
	st.LastError = w.lastError
	if w.breaker != nil {
		st.Breaker = w.breaker.State()
	}

	if h := w.handle; h != nil {
		state := h.State()
		st.State = state.String()
		st.PID = h.PID()
		started := h.StartedAt().UTC()
		st.StartedAt = &started
		if !state.Terminal() {
			st.UptimeSeconds = h.Uptime().Seconds()
		}
		if withOutput {
			st.Output = h.Output()
		}
	}

	if reg, ok := r.regs.Status(spec.Name); ok {
		st.Registration = &reg
	}
	return st
}

func exitDescription(h *process.Handle) string {
	if err := h.ExitErr(); err != nil {
		return err.Error()
	}
	return "exit status 0"
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
