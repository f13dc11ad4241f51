package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storeadmin/api/internal/alerts"
	"storeadmin/api/internal/cache"
	"storeadmin/api/internal/log"
	"storeadmin/api/internal/metrics"
)

var alertsMetricsAddr string

var alertsWorkerCmd = &cobra.Command{
	Use:   "alerts-worker",
	Short: "Consume high and critical security events from the alert stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		workerLog := log.Component(logger, "alerts")
		m := metrics.New()
		if alertsMetricsAddr != "" {
			srv := &http.Server{Addr: alertsMetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					workerLog.Error().Err(err).Msg("metrics listener failed")
				}
			}()
			defer srv.Close()
		}

		consumer := alerts.NewConsumer(
			client,
			cfg.Alerts.Stream,
			cfg.Alerts.Group,
			cfg.Alerts.Consumer,
			cfg.Alerts.ClaimInterval,
			workerLog,
			alerts.NewLogHandler(workerLog, m),
		)

		workerLog.Info().Str("stream", cfg.Alerts.Stream).Str("group", cfg.Alerts.Group).Msg("alerts worker started")
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		workerLog.Info().Msg("alerts worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsWorkerCmd)
	alertsWorkerCmd.Flags().StringVar(&alertsMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
}
