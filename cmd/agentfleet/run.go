// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package main

import (
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/agentfleet/internal/api"
	"github.com/tomtom215/agentfleet/internal/logging"
	"github.com/tomtom215/agentfleet/internal/supervisor"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the fleet and supervise it until stopped",
		Long: `Run loads the fleet document, bootstraps the discovery registry if it is not
already healthy, starts every worker and keeps them running.

It stops on SIGINT, SIGTERM or when the stop file appears ("agentfleet stop").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			logging.Info().
				Str("version", version).
				Str("fleet", cfg.Fleet.Path).
				Str("registry", cfg.Registry.BaseURL()).
				Bool("status_api", cfg.Status.Enabled).
				Msg("Starting agentfleet")

			sup, err := supervisor.New(cfg, supervisor.WithStatusHandler(
				func(s *supervisor.Supervisor) http.Handler {
					return api.NewRouter(s, cfg.Status).Handler()
				}))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := sup.Run(ctx); err != nil {
				logging.Error().Err(err).Msg("Supervisor failed to start")
				return err
			}
			return nil
		},
	}
}

