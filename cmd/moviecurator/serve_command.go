package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"MovieCurator/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger(cmd)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			application, err := app.New(signalCtx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			logger.Info("moviecurator starting", "addr", cfg.Server.Addr, "scheduler", cfg.Scheduler.Enabled)
			if err := application.Run(signalCtx); err != nil {
				logger.Error("application stopped", "error", err)
				return err
			}
			logger.Info("moviecurator stopped")
			return nil
		},
	}
}
