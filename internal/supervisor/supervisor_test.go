// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

//go:build unix

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/discovery"
	"github.com/tomtom215/agentfleet/internal/fleet"
	"github.com/tomtom215/agentfleet/internal/models"
)

type fakeBoot struct {
	ensureErr error
	launched  bool
	ensures   atomic.Int32
	stops     atomic.Int32
}

func (b *fakeBoot) EnsureRegistryRunning(context.Context) error {
	b.ensures.Add(1)
	return b.ensureErr
}

func (b *fakeBoot) Endpoint() discovery.Endpoint {
	return discovery.Endpoint{Host: "127.0.0.1", Port: 8000, HealthPath: "/health", RegisterPath: "/registry/register"}
}

func (b *fakeBoot) Launched() bool { return b.launched }

func (b *fakeBoot) Stop(time.Duration) { b.stops.Add(1) }

type countingRegistrar struct {
	mu    sync.Mutex
	cards map[string]discovery.AgentCard
}

func (r *countingRegistrar) Register(_ context.Context, card discovery.AgentCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cards == nil {
		r.cards = make(map[string]discovery.AgentCard)
	}
	r.cards[card.Name] = card
	return nil
}

func (r *countingRegistrar) card(name string) (discovery.AgentCard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[name]
	return c, ok
}

func (r *countingRegistrar) has(name string) bool {
	_, ok := r.card(name)
	return ok
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Fleet.Path = filepath.Join(dir, "fleet.yaml")
	cfg.Fleet.WorkDir = dir
	cfg.Fleet.WatchDebounce = 50 * time.Millisecond
	cfg.Fleet.MinReloadInterval = 10 * time.Millisecond
	cfg.Process.LivenessInterval = 50 * time.Millisecond
	cfg.Process.GracefulTimeout = time.Second
	cfg.Registration.Interval = 50 * time.Millisecond
	cfg.Registration.AdvertiseHost = "127.0.0.1"
	cfg.Supervisor.StopFile = filepath.Join(dir, "stop_signal.txt")
	cfg.Supervisor.ShutdownTimeout = 2 * time.Second
	cfg.Supervisor.Credentials = config.CredentialsNone
	cfg.Status.Enabled = false
	return cfg
}

func writeFleet(t *testing.T, path string, names ...string) {
	t.Helper()
	var b strings.Builder
	b.WriteString("agents:\n")
	for i, name := range names {
		fmt.Fprintf(&b, "  - name: %s\n    file: /bin/sh\n    args: [\"-c\", \"sleep 30\"]\n    port: %d\n    description: %s worker\n",
			name, 7001+i, name)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatal(err)
	}
}

func runAsync(ctx context.Context, s *Supervisor) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func processGone(pid int) bool {
	return syscall.Kill(pid, 0) != nil
}

func TestSupervisor_Lifecycle(t *testing.T) {
	cfg := testConfig(t)
	writeFleet(t, cfg.Fleet.Path, "alpha")

	boot := &fakeBoot{launched: true}
	reg := &countingRegistrar{}
	s, err := New(cfg, WithBootstrapper(boot), WithRegistrar(reg))
	if err != nil {
		t.Fatal(err)
	}
	done := runAsync(context.Background(), s)

	waitFor(t, "alpha running and registered", func() bool {
		return s.Status().Running == 1 && reg.has("alpha")
	})
	alpha, _ := s.Worker("alpha")
	if card, _ := reg.card("alpha"); card.URL != "http://127.0.0.1:7001" {
		t.Errorf("registered url = %q", card.URL)
	}

	// hot reload adds a worker without touching the running one
	writeFleet(t, cfg.Fleet.Path, "alpha", "beta")
	waitFor(t, "beta started by reload", func() bool {
		return s.Status().Running == 2 && reg.has("beta")
	})
	if again, _ := s.Worker("alpha"); again.PID != alpha.PID {
		t.Error("unchanged worker was restarted by reload")
	}
	beta, _ := s.Worker("beta")

	// crash recovery
	if err := syscall.Kill(-beta.PID, syscall.SIGKILL); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "beta restarted", func() bool {
		st, ok := s.Worker("beta")
		return ok && st.Restarts == 1 && st.State == models.WorkerStateRunning
	})
	beta, _ = s.Worker("beta")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := RequestStop(ctx, cfg.Supervisor.StopFile, 20*time.Millisecond); err != nil {
		t.Fatalf("RequestStop() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil on stop file", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after stop file")
	}

	for _, pid := range []int{alpha.PID, beta.PID} {
		if !processGone(pid) {
			t.Errorf("worker pid %d survived shutdown", pid)
		}
	}
	if boot.stops.Load() != 1 {
		t.Errorf("launched registry should be stopped once, got %d", boot.stops.Load())
	}
	if _, err := os.Stat(cfg.Supervisor.StopFile); !errors.Is(err, os.ErrNotExist) {
		t.Error("stop file should be removed on shutdown")
	}
	if st := s.Status(); st.Desired != 0 {
		t.Errorf("fleet not empty after shutdown: %+v", st)
	}
}

func TestSupervisor_SignalShutdownLeavesForeignRegistry(t *testing.T) {
	cfg := testConfig(t)
	writeFleet(t, cfg.Fleet.Path, "gamma")

	boot := &fakeBoot{launched: false}
	s, err := New(cfg, WithBootstrapper(boot), WithRegistrar(&countingRegistrar{}))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	waitFor(t, "gamma running", func() bool { return s.Status().Running == 1 })
	gamma, _ := s.Worker("gamma")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if !processGone(gamma.PID) {
		t.Error("worker survived signal shutdown")
	}
	if boot.stops.Load() != 0 {
		t.Error("a registry the supervisor did not launch must be left running")
	}
}

func TestSupervisor_FatalStartupErrors(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(cfg *config.Config, boot *fakeBoot) []Option
		wantErr     error
		wantEnsured bool
	}{
		{
			name: "missing credentials",
			setup: func(cfg *config.Config, _ *fakeBoot) []Option {
				cfg.Supervisor.Credentials = config.CredentialsOpenAI
				return []Option{WithLookupEnv(func(string) (string, bool) { return "", false })}
			},
			wantErr: config.ErrMissingCredentials,
		},
		{
			name: "unreadable fleet document",
			setup: func(cfg *config.Config, _ *fakeBoot) []Option {
				if err := os.WriteFile(cfg.Fleet.Path, []byte("agents: [oops"), 0o600); err != nil {
					t.Fatal(err)
				}
				return nil
			},
			wantErr: fleet.ErrConfigRead,
		},
		{
			name: "registry port conflict",
			setup: func(_ *config.Config, boot *fakeBoot) []Option {
				boot.ensureErr = fmt.Errorf("%w: 127.0.0.1:8000", discovery.ErrPortConflict)
				return nil
			},
			wantErr:     discovery.ErrPortConflict,
			wantEnsured: true,
		},
		{
			name: "registry unavailable",
			setup: func(_ *config.Config, boot *fakeBoot) []Option {
				boot.ensureErr = &discovery.UnavailableError{URL: "http://127.0.0.1:8000/health", Attempts: 12}
				return nil
			},
			wantErr:     discovery.ErrRegistryUnavailable,
			wantEnsured: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			writeFleet(t, cfg.Fleet.Path, "delta")
			boot := &fakeBoot{}
			opts := append(tt.setup(cfg, boot), WithBootstrapper(boot), WithRegistrar(&countingRegistrar{}))

			s, err := New(cfg, opts...)
			if err != nil {
				t.Fatal(err)
			}
			err = s.Run(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Run() = %v, want %v", err, tt.wantErr)
			}
			if got := boot.ensures.Load() > 0; got != tt.wantEnsured {
				t.Errorf("registry bootstrap attempted = %v, want %v", got, tt.wantEnsured)
			}
			if st := s.Status(); st.Desired != 0 {
				t.Errorf("no worker should start on a fatal error, got %+v", st)
			}
		})
	}
}
