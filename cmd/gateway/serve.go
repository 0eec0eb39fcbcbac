package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/server"
	"cors-gateway/pkg/logger"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			log := logger.NewLogger(logger.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: cfg.Logging.Output,
				Fields: map[string]string{
					"service": cfg.Tracing.ServiceName,
				},
			})
			defer logger.Sync(log)

			routes, err := config.LoadRoutes(opts.routesPath)
			if err != nil {
				log.Error("Failed to load route config",
					logger.Error(err),
					logger.String("config_file", opts.routesPath))
				return err
			}

			srv, err := server.NewServer(cfg, routes, log)
			if err != nil {
				log.Error("Failed to build route table", logger.Error(err))
				return fmt.Errorf("failed to build route table: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("Shutting down gateway...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			if err := <-errCh; err != nil {
				return err
			}

			log.Info("Gateway has been shutdown gracefully")
			return nil
		},
	}

	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")

	return cmd
}
