package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/septivank/meter-reading-api/internal/config"
	"github.com/septivank/meter-reading-api/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const lifecycleTimeout = 30 * time.Second

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meter-reading-api",
		Short:         "Meter reading HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())

	return rootCmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadForMigrations()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("applying migrations", zap.String("url", db.MaskPassword(cfg.Database.URL)))
			return db.Migrate(logger, cfg.Database.URL)
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := newApp()

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if startCtx.Err() == context.DeadlineExceeded {
			bootLogger().Error("application did not start within 30 seconds, check that the database and RabbitMQ are reachable")
		}
		return err
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	return app.Stop(stopCtx)
}
