// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/logging"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "agentfleet",
		Short: "Supervise a fleet of agent worker processes",
		Long: `agentfleet starts the agent workers listed in a fleet document, makes sure
the discovery registry is up, registers every worker with it, restarts
workers that crash and applies edits to the fleet document while running.`,
		Version: version,
		// errors are reported by the command, not followed by usage
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "agentfleet version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (default: $AGENTFLEET_CONFIG or ./agentfleet.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"override logging.level (trace, debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newStopCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads configuration and initializes logging from it.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if !logging.ValidLevel(o.logLevel) {
			return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
		cfg.Logging.Level = o.logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)

	return cfg, nil
}
