// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marianodo/farm-track-sub000/internal/auth"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show pending mutations and backend reachability",
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

			pending, err := a.client.QueueLen(ctx)
			if err != nil {
				return err
			}
			reachability := "offline"
			if a.client.IsOnline(ctx) {
				reachability = "online"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:  %s (%s)\n", a.config.BaseURL, reachability)
			fmt.Fprintf(out, "pending:  %d\n", pending)
			fmt.Fprintf(out, "held:     %d\n", a.service.Held().Count())
			if userID, ok := auth.GetUserID(ctx); ok {
				fmt.Fprintf(out, "user:     %s\n", userID)
			}
			if deviceID, ok := auth.GetDeviceID(ctx); ok {
				fmt.Fprintf(out, "device:   %s\n", deviceID)
			}
			return nil
		},
	}
}
