// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

//go:build unix

package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/probe"
	"github.com/tomtom215/agentfleet/internal/process"
)

// scriptedProber fails until healthyAfter checks have been made.
type scriptedProber struct {
	calls        atomic.Int32
	healthyAfter int32
}

func (p *scriptedProber) Check(context.Context, string) error {
	n := p.calls.Add(1)
	if p.healthyAfter > 0 && n >= p.healthyAfter {
		return nil
	}
	return probe.ErrUnhealthy
}

func portFree(string, int) bool { return false }

func testRegistryConfig(command ...string) config.RegistryConfig {
	return config.RegistryConfig{
		Host:         "127.0.0.1",
		Port:         18000,
		Command:      command,
		HealthPath:   "/health",
		RegisterPath: "/registry/register",
		MaxRetries:   3,
		PollInterval: 50 * time.Millisecond,
		ProbeTimeout: time.Second,
	}
}

func TestEnsureRegistryRunning_AlreadyHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ep := endpointFor(t, srv)
	cfg := testRegistryConfig("/bin/false")
	cfg.Host, cfg.Port = ep.Host, ep.Port

	b := NewBootstrapper(cfg, process.Options{})
	if err := b.EnsureRegistryRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRegistryRunning() error = %v", err)
	}
	if b.Launched() {
		t.Error("a healthy registry must not be relaunched")
	}
}

func TestEnsureRegistryRunning_PortConflict(t *testing.T) {
	b := NewBootstrapper(testRegistryConfig("/bin/sh", "-c", "sleep 30"), process.Options{},
		WithProber(&scriptedProber{}),
		WithPortCheck(func(string, int) bool { return true }),
	)

	err := b.EnsureRegistryRunning(context.Background())
	if !errors.Is(err, ErrPortConflict) {
		t.Fatalf("expected ErrPortConflict, got %v", err)
	}
	if b.Launched() {
		t.Error("nothing should be launched on a port conflict")
	}
}

func TestEnsureRegistryRunning_NoCommand(t *testing.T) {
	b := NewBootstrapper(testRegistryConfig(), process.Options{},
		WithProber(&scriptedProber{}), WithPortCheck(portFree))

	err := b.EnsureRegistryRunning(context.Background())
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestEnsureRegistryRunning_LaunchesAndPolls(t *testing.T) {
	prober := &scriptedProber{healthyAfter: 3}
	b := NewBootstrapper(testRegistryConfig("/bin/sh", "-c", "sleep 30"), process.Options{},
		WithProber(prober), WithPortCheck(portFree))

	if err := b.EnsureRegistryRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRegistryRunning() error = %v", err)
	}
	if !b.Launched() {
		t.Fatal("expected the registry to be launched")
	}
	if got := prober.calls.Load(); got != 3 {
		t.Errorf("health checks = %d, want 3", got)
	}

	b.Stop(time.Second)
	if b.Launched() {
		t.Error("Stop should release the launched registry")
	}
}

func TestEnsureRegistryRunning_Exhausted(t *testing.T) {
	prober := &scriptedProber{}
	b := NewBootstrapper(testRegistryConfig("/bin/sh", "-c", "echo booting; sleep 30"), process.Options{},
		WithProber(prober), WithPortCheck(portFree))

	err := b.EnsureRegistryRunning(context.Background())
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("expected ErrRegistryUnavailable, got %v", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %T", err)
	}
	if ue.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ue.Attempts)
	}
	if !strings.Contains(strings.Join(ue.Output, "\n"), "booting") {
		t.Errorf("expected captured registry output, got %v", ue.Output)
	}
	if got := prober.calls.Load(); got != 4 {
		t.Errorf("health checks = %d, want initial + 3 retries", got)
	}
	if b.Launched() {
		t.Error("a registry that never became healthy should be stopped")
	}
}

func TestEnsureRegistryRunning_ChildCrashes(t *testing.T) {
	cfg := testRegistryConfig("/bin/sh", "-c", "echo address already in use; exit 1")
	cfg.MaxRetries = 100

	b := NewBootstrapper(cfg, process.Options{}, WithProber(&scriptedProber{}), WithPortCheck(portFree))

	start := time.Now()
	err := b.EnsureRegistryRunning(context.Background())
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
	if ue.Err == nil {
		t.Error("expected the child's exit error")
	}
	if !strings.Contains(err.Error(), "address already in use") {
		t.Errorf("error should carry the registry output, got %q", err.Error())
	}
	if time.Since(start) > 3*time.Second {
		t.Error("a crashed registry should fail fast instead of exhausting retries")
	}
}

func TestEnsureRegistryRunning_Cancelled(t *testing.T) {
	cfg := testRegistryConfig("/bin/sh", "-c", "sleep 30")
	cfg.MaxRetries = 1000

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBootstrapper(cfg, process.Options{}, WithProber(&scriptedProber{}), WithPortCheck(portFree))

	time.AfterFunc(150*time.Millisecond, cancel)
	if err := b.EnsureRegistryRunning(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if b.Launched() {
		t.Error("cancelled bootstrap should stop the registry it launched")
	}
}

func TestEnsureRegistryRunning_CleanExitKeepsPollInterval(t *testing.T) {
	cfg := testRegistryConfig("/bin/sh", "-c", "exit 0")
	cfg.MaxRetries = 5
	cfg.PollInterval = 200 * time.Millisecond

	prober := &scriptedProber{}
	b := NewBootstrapper(cfg, process.Options{}, WithProber(prober), WithPortCheck(portFree))

	start := time.Now()
	err := b.EnsureRegistryRunning(context.Background())
	elapsed := time.Since(start)

	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnavailableError, got %v", err)
	}
	if ue.Err != nil {
		t.Errorf("a clean exit is not a launch failure, got %v", ue.Err)
	}
	if ue.Attempts != cfg.MaxRetries {
		t.Errorf("Attempts = %d, want %d", ue.Attempts, cfg.MaxRetries)
	}
	if minWait := time.Duration(cfg.MaxRetries-1) * cfg.PollInterval; elapsed < minWait-50*time.Millisecond {
		t.Errorf("retries spent in %v, want at least %v between polls", elapsed, minWait)
	}
	if got := prober.calls.Load(); got != int32(cfg.MaxRetries)+1 {
		t.Errorf("health checks = %d, want initial + %d retries", got, cfg.MaxRetries)
	}
}
