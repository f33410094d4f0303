// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds the supervisor's own settings. The fleet itself is described
// by a separate document (see package fleet) referenced by Fleet.Path.
type Config struct {
	Fleet        FleetConfig        `koanf:"fleet"`
	Registry     RegistryConfig     `koanf:"registry"`
	Registration RegistrationConfig `koanf:"registration"`
	Process      ProcessConfig      `koanf:"process"`
	Restart      RestartConfig      `koanf:"restart"`
	Supervisor   SupervisorConfig   `koanf:"supervisor"`
	Status       StatusConfig       `koanf:"status"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// FleetConfig locates the fleet document and controls how changes to it are picked up.
type FleetConfig struct {
	// Path is the fleet document (YAML or JSON).
	// Default: agents/config.json
	Path string `koanf:"path" validate:"required"`

	// WatchDebounce is the quiet period after the last change event before
	// the document is reloaded.
	// Default: 1s
	WatchDebounce time.Duration `koanf:"watch_debounce" validate:"gte=0"`

	// MinReloadInterval bounds how often reloads are applied to the running fleet.
	// Default: 2s
	MinReloadInterval time.Duration `koanf:"min_reload_interval" validate:"gte=0"`

	// WorkDir is where relative worker executables are resolved.
	// Default: the directory containing Path.
	WorkDir string `koanf:"work_dir"`
}

// RegistryConfig describes the discovery registry and how to start it.
type RegistryConfig struct {
	Host string `koanf:"host" validate:"required"`

	// Port is also exported to the registry child as DISCOVERY_PORT.
	// Default: 8000
	Port int `koanf:"port" validate:"min=1,max=65535"`

	// Command launches the registry when it is not already running.
	// Empty means the registry must be started externally.
	Command []string `koanf:"command"`

	// WorkDir for the registry child. Default: current directory.
	WorkDir string `koanf:"work_dir"`

	HealthPath   string `koanf:"health_path" validate:"required,startswith=/"`
	RegisterPath string `koanf:"register_path" validate:"required,startswith=/"`

	// MaxRetries is the number of post-launch health probes before giving up.
	// Default: 12
	MaxRetries int `koanf:"max_retries" validate:"min=1"`

	// PollInterval between post-launch health probes.
	// Default: 2s
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`

	// ProbeTimeout bounds a single health request.
	// Default: 2s
	ProbeTimeout time.Duration `koanf:"probe_timeout" validate:"gt=0"`
}

// BaseURL returns the registry's base URL.
func (r RegistryConfig) BaseURL() string {
	return "http://" + net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// RegistrationConfig controls the per-worker registration loops.
type RegistrationConfig struct {
	// Interval between registrations of the same worker.
	// Default: 30s
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// Timeout bounds one registration request.
	// Default: 5s
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// AdvertiseHost is the host put in each worker's URL.
	// Default: localhost
	AdvertiseHost string `koanf:"advertise_host" validate:"required"`
}

// ProcessConfig controls how workers are launched, watched and stopped.
type ProcessConfig struct {
	// GracefulTimeout is how long a worker gets to exit after SIGTERM before SIGKILL.
	// Default: 5s
	GracefulTimeout time.Duration `koanf:"graceful_timeout" validate:"gt=0"`

	// LivenessInterval is the period of the liveness sweep and stop-file check.
	// Default: 2s
	LivenessInterval time.Duration `koanf:"liveness_interval" validate:"gt=0"`

	// OutputLines is how many trailing output lines are kept per worker.
	// Default: 200
	OutputLines int `koanf:"output_lines" validate:"min=1"`

	// Interpreters maps a file extension (without dot) to the program that runs it.
	// Default: py -> python3
	Interpreters map[string]string `koanf:"interpreters"`
}

// RestartConfig bounds crash restarts per worker.
type RestartConfig struct {
	// MaxConsecutiveCrashes within Window that open the worker's breaker.
	// 0 disables the breaker and restores unbounded one-per-sweep restarts.
	// Default: 5
	MaxConsecutiveCrashes int `koanf:"max_consecutive_crashes" validate:"min=0"`

	// Window is the period after which crash counts are cleared while the breaker is closed.
	// Default: 60s
	Window time.Duration `koanf:"window" validate:"gte=0"`

	// Cooldown is how long an open breaker suppresses restarts.
	// Default: 30s
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`
}

// SupervisorConfig holds composition root settings.
type SupervisorConfig struct {
	// StopFile is the sentinel whose presence triggers shutdown.
	// Default: agents/stop_signal.txt
	StopFile string `koanf:"stop_file"`

	// ShutdownTimeout bounds how long background services get to drain.
	// Default: 10s
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Credentials selects the startup credential check: openai or none.
	// Default: openai
	Credentials string `koanf:"credentials" validate:"oneof=openai none"`
}

// StatusConfig controls the read-only status API.
type StatusConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen" validate:"omitempty,hostname_port"`

	// CORSAllowedOrigins lists browser origins allowed to read the API.
	// Empty disables cross-origin access.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables
	// rate limiting.
	// Default: 300 per minute
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file:line in log entries.
	Caller bool `koanf:"caller"`
}
