package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/gh-api-bridge/internal/config"
	"github.com/Sternrassler/gh-api-bridge/internal/server"
	"github.com/Sternrassler/gh-api-bridge/pkg/action"
	"github.com/Sternrassler/gh-api-bridge/pkg/batch"
	"github.com/Sternrassler/gh-api-bridge/pkg/cache"
	"github.com/Sternrassler/gh-api-bridge/pkg/client"
	"github.com/Sternrassler/gh-api-bridge/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gh-bridge",
		Short:         "Read-through cache in front of the GitHub users API.",
		Version:       client.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newServeCmd(), newGetCmd(), newWarmCmd(), newPurgeCmd())
	return rootCmd
}

// setup loads configuration and the logger shared by all commands.
func setup() (config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.LoggingConfig())
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve [--port port]",
		Short: "Start the HTTP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info().
				Str("user_agent", cfg.UserAgent).
				Str("github", cfg.GitHubAPIURL).
				Dur("ttl", cfg.TTL()).
				Msg("Starting GitHub API bridge")

			srv := server.New(server.Options{
				Addr:     ":" + cfg.Port,
				Resolver: a.coordinator,
				Ready:    a.store,
				Logger:   logger,
			})
			return srv.Run(ctx)
		},
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func newGetCmd() *cobra.Command {
	var act string

	cmd := &cobra.Command{
		Use:   "get <username> [--action action]",
		Short: "Resolve one user through the cache and print the response envelope.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.coordinator.Resolve(cmd.Context(), args[0], act)
			body, err := server.EncodeEnvelope(res.Code, res.Body)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(body); err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}
			return nil
		},
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().StringVarP(&act, "action", "a", "", "sub-resource (_ or repos)")
	return cmd
}

func newWarmCmd() *cobra.Command {
	var (
		actions     []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "warm <username>... [--action action]... [--concurrency n]",
		Short: "Resolve many users in parallel to populate the cache.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			bc := batch.DefaultConfig()
			if concurrency > 0 {
				bc.MaxConcurrency = concurrency
			}
			bc.Timeout = cfg.RequestTimeout * time.Duration(cfg.MaxAttempts)

			summary, err := batch.NewWarmer(a.coordinator, bc).Warm(cmd.Context(), batch.Targets(args, actions...))
			if summary != nil {
				out := cmd.OutOrStdout()
				for _, r := range summary.Results {
					switch {
					case r.Err != nil:
						fmt.Fprintf(out, "%-40s %d %v\n", r.Target, r.Code, r.Err)
					case r.Cached:
						fmt.Fprintf(out, "%-40s %d cached\n", r.Target, r.Code)
					case r.Code != 0:
						fmt.Fprintf(out, "%-40s %d fetched\n", r.Target, r.Code)
					}
				}
				fmt.Fprintf(out, "cached=%d fetched=%d failed=%d in %s\n",
					summary.Cached, summary.Fetched, summary.Failed, summary.Duration.Round(time.Millisecond))
			}
			return err
		},
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().StringSliceVarP(&actions, "action", "a", []string{string(action.Default)}, "sub-resources to warm")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "parallel resolves (default 4)")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var act string

	cmd := &cobra.Command{
		Use:   "purge <username> [--action action]",
		Short: "Delete one cached record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			parsed, err := a.coordinator.Actions().Parse(act)
			if err != nil {
				return err
			}
			key := cache.Key{Username: args[0], Action: parsed}
			if err := a.store.Delete(cmd.Context(), key); err != nil {
				return fmt.Errorf("purge %s: %w", key, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", key)
			return nil
		},
		DisableFlagsInUseLine: true,
	}
	cmd.Flags().StringVarP(&act, "action", "a", string(action.Default), "sub-resource (_ or repos)")
	return cmd
}
