// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/metrics"
)

var (
	// ErrLaunchFailed is returned when a worker process cannot be spawned.
	ErrLaunchFailed = errors.New("launch failed")

	// ErrTerminationFailed is logged when a worker cannot be confirmed dead
	// after the forced kill. It is never returned to callers.
	ErrTerminationFailed = errors.New("termination failed")
)

// LaunchError carries the worker name alongside the spawn error.
type LaunchError struct {
	Worker string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Worker, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

// Outcome describes how a termination completed.
type Outcome string

const (
	OutcomeGraceful      Outcome = "graceful"
	OutcomeForced        Outcome = "forced"
	OutcomeAlreadyExited Outcome = "already_exited"
)

// Options configures a Launcher.
type Options struct {
	// WorkDir resolves relative worker files and is the default working
	// directory of launched processes.
	WorkDir string

	// OutputLines is the per-worker output ring size.
	OutputLines int

	// Interpreters maps a file extension (without dot) to the program that runs it.
	Interpreters map[string]string

	// KillWait bounds the wait for the kernel to reap a SIGKILLed group.
	// Default: 5s
	KillWait time.Duration

	// Component is the logger component name. Default: launcher.
	Component string
}

// Launcher spawns worker processes and tracks the live handle for each name.
type Launcher struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewLauncher creates a launcher.
func NewLauncher(opts Options) *Launcher {
	if opts.OutputLines < 1 {
		opts.OutputLines = 200
	}
	if opts.KillWait <= 0 {
		opts.KillWait = 5 * time.Second
	}
	if opts.Component == "" {
		opts.Component = "launcher"
	}
	return &Launcher{
		opts:    opts,
		log:     logging.WithComponent(opts.Component),
		handles: make(map[string]*Handle),
	}
}

// Launch starts a worker for spec. If a live handle for the same name already
// exists, it is returned unchanged and no second process is started.
func (l *Launcher) Launch(ctx context.Context, spec fleet.WorkerSpec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LaunchError{Worker: spec.Name, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.handles[spec.Name]; ok && !existing.exited() {
		l.log.Debug().Str("worker", spec.Name).Int("pid", existing.pid).Msg("Worker already running")
		return existing, nil
	}

	l.removeStaleSocket(spec)

	argv, err := l.command(spec)
	if err != nil {
		metrics.RecordLaunch(spec.Name, err)
		return nil, &LaunchError{Worker: spec.Name, Err: err}
	}

	workerLog := l.log.With().Str("worker", spec.Name).Logger()
	h := &Handle{
		spec:   spec,
		output: NewOutputBuffer(l.opts.OutputLines, workerLog),
		done:   make(chan struct{}),
		state:  StateLaunching,
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv comes from the operator's fleet document
	cmd.Dir = spec.WorkDir
	if cmd.Dir == "" {
		cmd.Dir = l.opts.WorkDir
	}
	cmd.Env = workerEnv(spec)
	cmd.Stdin = nil
	cmd.Stdout = h.output
	cmd.Stderr = h.output
	cmd.WaitDelay = 2 * time.Second
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		metrics.RecordLaunch(spec.Name, err)
		return nil, &LaunchError{Worker: spec.Name, Err: err}
	}

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.startedAt = time.Now()
	h.transition(StateRunning)
	l.handles[spec.Name] = h
	metrics.RecordLaunch(spec.Name, nil)

	go l.reap(h, workerLog)

	workerLog.Info().
		Int("pid", h.pid).
		Int("port", spec.Port).
		Strs("argv", argv).
		Msg("Worker started")

	return h, nil
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (l *Launcher) reap(h *Handle, log zerolog.Logger) {
	err := h.cmd.Wait()
	h.output.Flush()
	state := h.markExited(err)
	close(h.done)

	if state == StateCrashed {
		log.Warn().Err(err).Int("pid", h.pid).Dur("uptime", h.Uptime()).Msg("Worker exited unexpectedly")
		return
	}
	log.Debug().Err(err).Int("pid", h.pid).Msg("Worker exited")
}

// Terminate stops the worker: SIGTERM to its process group, a wait of up to
// graceful, then SIGKILL. It always completes and leaves the handle Stopped.
func (l *Launcher) Terminate(h *Handle, graceful time.Duration) Outcome {
	if h == nil {
		return OutcomeAlreadyExited
	}
	log := l.log.With().Str("worker", h.Name()).Int("pid", h.pid).Logger()

	outcome := l.terminate(h, graceful, log)

	h.transition(StateStopped)
	l.forget(h)
	metrics.RecordTermination(string(outcome))
	log.Info().Str("outcome", string(outcome)).Msg("Worker stopped")
	return outcome
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (l *Launcher) terminate(h *Handle, graceful time.Duration, log zerolog.Logger) Outcome {
	if h.exited() {
		return OutcomeAlreadyExited
	}
	if !h.transition(StateStopping) && h.exited() {
		return OutcomeAlreadyExited
	}

	if err := signalGroup(h.cmd, sigTerm); err != nil {
		log.Warn().Err(err).Msg("Graceful stop signal failed; escalating")
	} else {
		timer := time.NewTimer(graceful)
		defer timer.Stop()
		select {
		case <-h.done:
			return OutcomeGraceful
		case <-timer.C:
			log.Warn().Dur("graceful_timeout", graceful).Msg("Worker ignored graceful stop; killing")
		}
	}

	if err := signalGroup(h.cmd, sigKill); err != nil && !h.exited() {
		log.Error().Err(err).Msg("Kill signal failed")
	}

	select {
	case <-h.done:
	case <-time.After(l.opts.KillWait):
		log.Error().Err(ErrTerminationFailed).Dur("waited", l.opts.KillWait).Msg("Worker not reaped after kill")
	}
	return OutcomeForced
}

// IsAlive reports whether the handle's process is still running.
func (l *Launcher) IsAlive(h *Handle) bool {
	return h != nil && !h.exited()
}

func (l *Launcher) forget(h *Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handles[h.Name()] == h {
		delete(l.handles, h.Name())
	}
}

func (l *Launcher) removeStaleSocket(spec fleet.WorkerSpec) {
	if spec.Socket == "" {
		return
	}
	err := os.Remove(spec.Socket)
	switch {
	case err == nil:
		l.log.Info().Str("worker", spec.Name).Str("socket", spec.Socket).Msg("Removed stale socket")
	case errors.Is(err, os.ErrNotExist):
	default:
		l.log.Warn().Err(err).Str("worker", spec.Name).Str("socket", spec.Socket).
			Msg("Could not remove stale socket; launching anyway")
	}
}

// command builds argv for spec. Relative files are looked up under WorkDir;
// a bare name that is not found there is left for PATH lookup. Files with a
// registered extension run through their interpreter.
func (l *Launcher) command(spec fleet.WorkerSpec) ([]string, error) {
	if spec.File == "" {
		return nil, errors.New("no executable configured")
	}

	target := spec.File
	if !filepath.IsAbs(target) {
		candidate := filepath.Join(l.opts.WorkDir, target)
		_, statErr := os.Stat(candidate)
		switch {
		case statErr == nil || strings.ContainsRune(target, filepath.Separator):
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", candidate, err)
			}
			target = abs
		default:
			// bare program name resolved through PATH
		}
	}

	ext := strings.TrimPrefix(filepath.Ext(target), ".")
	argv := make([]string, 0, len(spec.Args)+2)
	if interp, ok := l.opts.Interpreters[ext]; ok && ext != "" {
		argv = append(argv, interp, target)
	} else {
		argv = append(argv, target)
	}
	return append(argv, spec.Args...), nil
}

// workerEnv is the supervisor's environment plus the worker's own variables.
// PORT and AGENT_NAME are always set from the spec.
func workerEnv(spec fleet.WorkerSpec) []string {
	env := os.Environ()
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}
	return append(env,
		"PORT="+strconv.Itoa(spec.Port),
		"AGENT_NAME="+spec.Name,
	)
}
