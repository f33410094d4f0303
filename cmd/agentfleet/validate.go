// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/agentfleet/internal/fleet"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and fleet document without starting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			specs, err := fleet.Load(cfg.Fleet.Path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d worker(s)\n", cfg.Fleet.Path, len(specs))
			for _, s := range specs {
				fmt.Fprintf(out, "  %-24s port %-5d %s\n", s.Name, s.Port, s.File)
			}
			return nil
		},
	}
}
