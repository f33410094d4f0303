// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Field-level constraints come from the struct tags; cross-field rules are checked here.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateRegistry(); err != nil {
		return err
	}

	if err := c.validateProcess(); err != nil {
		return err
	}

	if err := c.validateStatus(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateRegistry checks that the bootstrap budget fits inside a sane startup window.
func (c *Config) validateRegistry() error {
	for i, arg := range c.Registry.Command {
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("registry.command[%d] must not be empty", i)
		}
	}
	if c.Registry.ProbeTimeout > c.Registry.PollInterval*10 {
		return fmt.Errorf("registry.probe_timeout (%v) must not exceed ten poll intervals (%v)",
			c.Registry.ProbeTimeout, c.Registry.PollInterval*10)
	}
	return nil
}

func (c *Config) validateProcess() error {
	for ext, interp := range c.Process.Interpreters {
		if strings.HasPrefix(ext, ".") {
			return fmt.Errorf("process.interpreters key %q must not start with '.'", ext)
		}
		if strings.TrimSpace(interp) == "" {
			return fmt.Errorf("process.interpreters[%s] must name a program", ext)
		}
	}
	if c.Process.GracefulTimeout >= c.Supervisor.ShutdownTimeout {
		return fmt.Errorf("process.graceful_timeout (%v) must be shorter than supervisor.shutdown_timeout (%v)",
			c.Process.GracefulTimeout, c.Supervisor.ShutdownTimeout)
	}
	return nil
}

func (c *Config) validateStatus() error {
	if c.Status.Enabled && c.Status.Listen == "" {
		return fmt.Errorf("status.listen is required when status.enabled=true")
	}
	if c.Status.RateLimitRequests > 0 && c.Status.RateLimitWindow <= 0 {
		return fmt.Errorf("status.rate_limit_window must be positive when status.rate_limit_requests > 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
}
