// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the offline read cache",
	}
	cmd.AddCommand(newCacheClearCommand(opts))
	return cmd
}

func newCacheClearCommand(opts *RootOptions) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Drop cached reference data",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if prefix != "" {
				if err := a.client.Cache.InvalidatePrefix(cmd.Context(), prefix); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cache entries with prefix %q cleared\n", prefix)
				return nil
			}
			if err := a.client.Cache.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "clear only keys with this prefix")
	return cmd
}
