// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"agentfleet.yaml",
	"agentfleet.yml",
	"/etc/agentfleet/config.yaml",
	"/etc/agentfleet/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "AGENTFLEET_CONFIG"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Fleet: FleetConfig{
			Path:              filepath.Join("agents", "config.json"),
			WatchDebounce:     time.Second,
			MinReloadInterval: 2 * time.Second,
			WorkDir:           "", // directory of Path
		},
		Registry: RegistryConfig{
			Host:         "localhost",
			Port:         8000,
			Command:      []string{},
			HealthPath:   "/health",
			RegisterPath: "/registry/register",
			MaxRetries:   12,
			PollInterval: 2 * time.Second,
			ProbeTimeout: 2 * time.Second,
		},
		Registration: RegistrationConfig{
			Interval:      30 * time.Second,
			Timeout:       5 * time.Second,
			AdvertiseHost: "localhost",
		},
		Process: ProcessConfig{
			GracefulTimeout:  5 * time.Second,
			LivenessInterval: 2 * time.Second,
			OutputLines:      200,
			Interpreters:     map[string]string{"py": "python3"},
		},
		Restart: RestartConfig{
			MaxConsecutiveCrashes: 5,
			Window:                time.Minute,
			Cooldown:              30 * time.Second,
		},
		Supervisor: SupervisorConfig{
			StopFile:        filepath.Join("agents", "stop_signal.txt"),
			ShutdownTimeout: 10 * time.Second,
			Credentials:     CredentialsOpenAI,
		},
		Status: StatusConfig{
			Enabled:           true,
			Listen:            "127.0.0.1:8090",
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration without consulting files or environment.
func Default() *Config {
	return defaultConfig()
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML file (explicit path, AGENTFLEET_CONFIG, or DefaultConfigPaths)
//  3. Environment Variables: explicit mappings, highest priority
//
// An explicitly requested path that does not exist is an error; a missing
// default file is not.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := resolveConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// DISCOVERY_PORT -> registry.port, LOG_LEVEL -> logging.level
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if cfg.Fleet.WorkDir == "" {
		cfg.Fleet.WorkDir = filepath.Dir(cfg.Fleet.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// resolveConfigFile picks the config file to load. Returns "" when no file applies.
func resolveConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	return findConfigFile(), nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"registry.command",
	"status.cors_allowed_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored so the ambient environment cannot leak into config.
var envMappings = map[string]string{
	// Fleet
	"agentfleet_fleet":               "fleet.path",
	"agentfleet_watch_debounce":      "fleet.watch_debounce",
	"agentfleet_min_reload_interval": "fleet.min_reload_interval",
	"agentfleet_work_dir":            "fleet.work_dir",

	// Registry
	"discovery_host":          "registry.host",
	"discovery_port":          "registry.port",
	"discovery_command":       "registry.command",
	"discovery_max_retries":   "registry.max_retries",
	"discovery_poll_interval": "registry.poll_interval",
	"discovery_probe_timeout": "registry.probe_timeout",

	// Registration
	"registration_interval": "registration.interval",
	"registration_timeout":  "registration.timeout",
	"advertise_host":        "registration.advertise_host",

	// Process
	"graceful_timeout":  "process.graceful_timeout",
	"liveness_interval": "process.liveness_interval",
	"output_lines":      "process.output_lines",

	// Restart
	"restart_max_crashes": "restart.max_consecutive_crashes",
	"restart_window":      "restart.window",
	"restart_cooldown":    "restart.cooldown",

	// Supervisor
	"agentfleet_stop_file":        "supervisor.stop_file",
	"agentfleet_shutdown_timeout": "supervisor.shutdown_timeout",
	"agentfleet_credentials":      "supervisor.credentials",

	// Status API
	"status_enabled": "status.enabled",
	"status_listen":  "status.listen",

	"status_cors_origins":      "status.cors_allowed_origins",
	"status_rate_limit":        "status.rate_limit_requests",
	"status_rate_limit_window": "status.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - DISCOVERY_PORT -> registry.port
//   - AGENTFLEET_FLEET -> fleet.path
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
