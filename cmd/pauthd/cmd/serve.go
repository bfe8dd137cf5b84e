package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/pluggableauth/cmd/pauthd/cmd/cmdutil"
	"github.com/terraconstructs/pluggableauth/internal/db/bunx"
	"github.com/terraconstructs/pluggableauth/internal/repository"
	"github.com/terraconstructs/pluggableauth/internal/server"
	"github.com/terraconstructs/pluggableauth/internal/services/directory"
	"github.com/terraconstructs/pluggableauth/internal/setup"
	"github.com/terraconstructs/pluggableauth/internal/telemetry"
)

var (
	purgeInterval time.Duration
	purgeGrace    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication server",
	Long: `Starts the HTTP server exposing the authentication scope, token issuance and
the directory administration endpoints.

SIGHUP audits the group folders for membership cycles and purges expired
revoked tokens without restarting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, flush, err := cmdutil.NewLogger(cfg)
		if err != nil {
			return err
		}
		defer flush()

		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, log.WithName("telemetry"))
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				log.Error(err, "telemetry shutdown failed")
			}
		}()

		serverMetrics, err := telemetry.NewServerMetrics()
		if err != nil {
			return fmt.Errorf("failed to create server metrics: %w", err)
		}
		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("failed to create auth metrics: %w", err)
		}

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL,
			bunx.WithMaxOpenConns(cfg.MaxDBConnections),
			bunx.WithLogger(log.WithName("db")),
			bunx.WithTracing(),
		)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		log.Info("connected to database", "type", bunx.DetectDatabaseType(cfg.DatabaseURL))

		stack, err := setup.Build(ctx, cfg, setup.Options{DB: db, Logger: log, Metrics: authMetrics})
		if err != nil {
			return err
		}
		auditCycles(stack.Directory, log)

		revoked := repository.NewBunRevokedTokenRepository(db)
		purge := func(ctx context.Context) {
			n, err := revoked.DeleteExpired(ctx, purgeGrace)
			if err != nil {
				log.Error(err, "revoked token purge failed")
				return
			}
			log.V(1).Info("purged revoked tokens", "count", n)
		}

		// Background purge of revoked tokens past their expiry
		purgeCtx, cancelPurge := context.WithCancel(ctx)
		defer cancelPurge()
		go func() {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					purge(purgeCtx)
				case <-purgeCtx.Done():
					return
				}
			}
		}()

		corsOpts := server.DefaultCORSOptions()
		if len(cfg.CORSOrigins) > 0 {
			corsOpts.AllowedOrigins = cfg.CORSOrigins
		}

		r := server.NewRouter(server.RouterOptions{
			Scope:       stack.Scope,
			Tokens:      stack.Tokens,
			Directory:   stack.Directory,
			Authorizer:  stack.Authorizer,
			Metrics:     serverMetrics,
			Logger:      log.WithName("http"),
			CORSOptions: &corsOpts,

			TrustProxyHeaders: cfg.TrustProxyHeaders,
		})

		// Create HTTP server
		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Info("starting server", "addr", cfg.ServerAddr, "prefix", stack.Scope.Prefix())
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal or maintenance signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		maintenance := make(chan os.Signal, 1)
		signal.Notify(maintenance, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)

			case sig := <-maintenance:
				log.Info("running maintenance", "signal", sig.String())
				auditCycles(stack.Directory, log)
				mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				purge(mctx)
				cancel()

			case sig := <-shutdown:
				log.Info("shutting down gracefully", "signal", sig.String())

				// Graceful shutdown with timeout
				sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(sctx); err != nil {
					_ = srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}

				log.Info("server stopped")
				return nil
			}
		}
	},
}

// auditCycles logs membership cycles in stored data. Serving continues; the
// lookups that walk a cycle stop at the first repeated group.
func auditCycles(dir *directory.Service, log logr.Logger) {
	cycles, err := dir.AuditCycles()
	if err != nil {
		log.Error(err, "group cycle audit failed")
		return
	}
	for _, c := range cycles {
		log.Info("group membership cycle", "groups", c)
	}
}

func init() {
	serveCmd.Flags().DurationVar(&purgeInterval, "purge-interval", time.Hour, "Interval between purges of expired revoked tokens")
	serveCmd.Flags().DurationVar(&purgeGrace, "purge-grace", 5*time.Minute, "How long revoked tokens are kept past their expiry")
	rootCmd.AddCommand(serveCmd)
}
