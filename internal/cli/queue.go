// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear the pending mutation queue",
	}
	cmd.AddCommand(newQueueListCommand(opts))
	cmd.AddCommand(newQueueClearCommand(opts))
	return cmd
}

func newQueueListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List pending mutations in replay order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := a.client.Queue.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "queue is empty")
				return nil
			}
			for _, e := range entries {
				created := time.UnixMilli(e.CreatedAt).Format(time.RFC3339)
				entity := e.Entity
				if entity == "" {
					entity = "-"
				}
				fmt.Fprintf(out, "%s  %s  %-6s %-10s %s\n", e.ID, created, e.Method, entity, e.URL)
			}
			fmt.Fprintf(out, "%d pending\n", len(entries))
			return nil
		},
	}
}

func newQueueClearCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Drop every pending mutation",
		Long:          "Drop every pending mutation. The discarded writes are not recoverable.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to discard pending mutations without --force")
			}
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.client.ClearQueue(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "queue cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm discarding pending mutations")
	return cmd
}
