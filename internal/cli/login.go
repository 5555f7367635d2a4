// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command group (login / login clear).
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "login <token>",
		Short:         "Store a backend-issued session token",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.tokens.SignIn(cmd.Context(), args[0]); err != nil {
				return err
			}
			userID, err := a.tokens.UserID(cmd.Context())
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", userID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "signed in")
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Drop the stored session token",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.tokens.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	})
	return cmd
}
