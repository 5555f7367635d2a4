// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marianodo/farm-track-sub000/offsync"
)

// NewSyncCommand creates the sync command: one manual replay pass.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay the pending mutation queue once",
		Long: `Run one replay pass over the pending mutation queue.

Entries the server accepts are removed; entries the server definitively
rejects are dropped and counted as failed; entries that cannot reach the
server stay queued for the next pass.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(opts)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := a.client.ProcessQueue(cmd.Context())
			if errors.Is(err, offsync.ErrSyncInProgress) {
				fmt.Fprintln(cmd.OutOrStdout(), "a replay is already running")
				return nil
			}
			if err != nil {
				return err
			}

			remaining, err := a.client.QueueLen(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced: %d  failed: %d  remaining: %d\n",
				result.Success, result.Failed, remaining)
			return nil
		},
	}
}
