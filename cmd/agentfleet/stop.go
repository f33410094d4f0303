// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/agentfleet/internal/supervisor"
)

func newStopCmd(opts *globalOptions) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask a running supervisor to shut down",
		Long: `Stop creates the configured stop file and waits until the running supervisor
removes it, which it does once every worker has been stopped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// the supervisor needs up to one liveness tick to notice the file
			// and shutdown_timeout to finish
			if wait <= 0 {
				wait = cfg.Process.LivenessInterval + cfg.Supervisor.ShutdownTimeout + 5*time.Second
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()

			if err := supervisor.RequestStop(ctx, cfg.Supervisor.StopFile, 0); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "fleet stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for shutdown (default: liveness interval + shutdown timeout + 5s)")
	return cmd
}
