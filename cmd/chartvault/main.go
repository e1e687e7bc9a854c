package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chartvault/chartvault/internal/auth"
	"github.com/chartvault/chartvault/internal/cache"
	"github.com/chartvault/chartvault/internal/config"
	"github.com/chartvault/chartvault/internal/health"
	"github.com/chartvault/chartvault/internal/logger"
	"github.com/chartvault/chartvault/internal/repo"
	"github.com/chartvault/chartvault/internal/server"
	"github.com/chartvault/chartvault/internal/storage"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chartvault",
		Short: "chartvault serves Helm chart repositories over HTTP",
		// With no subcommand, chartvault runs serve.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIssueTokenCmd())
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chart repository HTTP server",
		Long: `Starts chartvault's HTTP server: accepts chart uploads, maintains
index.yaml, and serves push/pull/delete routes for Helm clients.

The command blocks while the server accepts requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newIssueTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer JWT for JWT_SECRET-gated mutating routes",
		Long: `Issues a bearer token operators hand to Helm clients when chartvault is
configured with JWT_SECRET. Requires JWT_SECRET to be set in the
environment; there is no way to mint a usable token otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIssueToken(subject, ttl)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "chartvault-client", "subject claim to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func runIssueToken(subject string, ttl time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set; configure it before issuing tokens")
	}

	gate := auth.New(cfg.BasicAuthUser, cfg.BasicAuthPass, cfg.JWTSecret)
	token, err := gate.IssueToken(subject, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runServe(ctx context.Context) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("building storage backend: %w", err)
	}

	idxCache, err := cache.New(cfg.RedisURL, cfg.IndexCacheTTL)
	if err != nil {
		return fmt.Errorf("building index cache: %w", err)
	}

	r := repo.New(store, idxCache, log, cfg.BaseURL)
	gate := auth.New(cfg.BasicAuthUser, cfg.BasicAuthPass, cfg.JWTSecret)
	checker := health.Init(store, idxCache, log, repo.IndexKey)

	srv := server.New(r, gate, checker, log, cfg.MaxUploadSize)

	addr := ":" + cfg.Port
	log.Info("chartvault listening", "addr", addr, "storage_backend", cfg.StorageBackend, "auth_enabled", gate.Enabled())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
