package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storeadmin/api/internal/cache"
	"storeadmin/api/internal/handlers"
	"storeadmin/api/internal/jobs"
	"storeadmin/api/internal/log"
	"storeadmin/api/internal/middleware"
	"storeadmin/api/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the revocation sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		checks := map[string]handlers.HealthCheck{"database": a.db.Ping}
		if a.redis != nil {
			checks["cache"] = func(ctx context.Context) error { return cache.Ping(ctx, a.redis) }
		}

		handlerSet := handlers.NewHandlerSet(
			log.Component(a.log, "http"),
			a.cfg.Environment,
			handlers.Services{
				Auth:        a.auth,
				MFA:         a.mfa,
				Security:    a.security,
				Users:       a.users,
				Permissions: a.permissions,
			},
			middleware.NewIPRateLimiter(a.cfg.RateLimit.LoginPerSecond, a.cfg.RateLimit.LoginBurst),
			checks,
			a.metrics.Handler(),
		)
		httpServer := server.NewHTTPServer(a.cfg, a.log, handlerSet, a.metrics)

		scheduler := jobs.NewScheduler(a.registry, a.metrics, log.Component(a.log, "jobs"))
		if err := scheduler.Start(a.cfg.Security.SweepSchedule); err != nil {
			return err
		}
		defer scheduler.Stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpServer.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		a.log.Info().Msg("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("graceful shutdown failed")
			return err
		}

		a.log.Info().Msg("server exited cleanly")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
