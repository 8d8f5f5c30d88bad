package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arjfabian/hostpulse/internal/app"
	"github.com/arjfabian/hostpulse/internal/config"
	"github.com/arjfabian/hostpulse/internal/logging"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "hostpulse",
		Short:         "Serve host CPU usage as Prometheus metrics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log, closeLog, err := logging.New(cfg.LogOutput, cfg.LogDir)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer closeLog()

			log.Info("Logger initialized")
			log.Info("Configuration loaded",
				zap.String("config", configPath),
				zap.Bool("database_dsn_set", cfg.DatabaseDSN != ""),
				zap.String("http_host", cfg.HTTPHost),
				zap.Uint16("http_port", cfg.HTTPPort),
				zap.String("log_output", string(cfg.LogOutput)),
			)

			log.Info("Starting server...", zap.String("version", version))
			if err := app.Run(cmd.Context(), cfg, log); err != nil {
				log.Error("Server stopped", zap.Error(err))
				return err
			}
			log.Info("Server stopped")
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the TOML config file")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "hostpulse:", err)
		stop()
		os.Exit(1)
	}
}
