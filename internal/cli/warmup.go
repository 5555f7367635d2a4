// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marianodo/farm-track-sub000/internal/auth"
)

// NewWarmupCommand creates the warmup command.
func NewWarmupCommand(opts *RootOptions) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Pre-fetch reference data for offline use",
		Long: `Fetch the signed-in user's fields, pens, variables, type-of-objects and
reports, and cache them locally so measurement entry works offline.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := a.sessionContext(cmd.Context())
			if userID == "" {
				var ok bool
				userID, ok = auth.GetUserID(ctx)
				if !ok {
					return fmt.Errorf("no --user given and no stored session")
				}
			}
			if err := a.service.Warmup(ctx, userID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "warm-up done")
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to warm up for (defaults to the stored session's user)")
	return cmd
}
