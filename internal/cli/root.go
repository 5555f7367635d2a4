// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the farmsync command line tool: manual replay of the
// offline mutation queue, queue and cache inspection, reference-data warm-up
// and the local reset.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/marianodo/farm-track-sub000/farmapi"
	"github.com/marianodo/farm-track-sub000/internal/auth"
	"github.com/marianodo/farm-track-sub000/offsync"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the farmsync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "farmsync",
		Short: "Offline queue companion for the farm-track client",
		Long: `farmsync manages the farm-track client's offline state: it replays the
pending mutation queue against the backend, inspects what is queued, warms the
reference-data cache for offline use and resets local state.

Synchronization is always manual: farmsync never replays the queue on its own.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "farmsync.yaml", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewWarmupCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// app bundles the wired subsystems a command works against.
type app struct {
	config  *Config
	store   *offsync.Store
	client  *offsync.Client
	service *farmapi.Service
	tokens  *auth.TokenSource
	logger  *slog.Logger
}

// openApp loads the config and wires the offline client. The returned
// cleanup closes the store.
func openApp(opts *RootOptions) (*app, func(), error) {
	logger := newLogger(opts)

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := offsync.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	tokens := auth.NewTokenSource(store, logger)
	tokenFn := tokens.Token
	if cfg.Token != "" {
		static := cfg.Token
		tokenFn = func(ctx context.Context) (string, error) { return static, nil }
	}

	client := offsync.NewClient(store, tokenFn, offsync.DefaultConfig(cfg.BaseURL), logger)
	service := farmapi.NewService(client, logger)

	a := &app{
		config:  cfg,
		store:   store,
		client:  client,
		service: service,
		tokens:  tokens,
		logger:  logger,
	}
	return a, func() { _ = store.Close() }, nil
}

// sessionContext enriches ctx with the stored session's user id and the
// database's device id so command paths can pick them up.
func (a *app) sessionContext(ctx context.Context) context.Context {
	var userID, deviceID string
	if id, err := a.tokens.UserID(ctx); err == nil {
		userID = id
	}
	if id, err := a.store.DeviceID(ctx); err == nil {
		deviceID = id
	}
	return auth.SetSessionContext(ctx, userID, deviceID)
}

func newLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
