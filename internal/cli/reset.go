// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe all offline state (queue, id map, cache)",
		Long: `Wipe every piece of offline state: the pending mutation queue, the id
reconciliation map and the read cache. Pending writes are discarded and not
recoverable. The stored session and device id survive.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to wipe offline state without --force")
			}
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.service.CleanSlate(cmd.Context()); err != nil {
				return err
			}
			clean, err := a.service.VerifyCleanSlate(cmd.Context())
			if err != nil {
				return err
			}
			if !clean {
				return fmt.Errorf("reset finished but offline state remains")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "offline state wiped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm wiping all offline state")
	return cmd
}
