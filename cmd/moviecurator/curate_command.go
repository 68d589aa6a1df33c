package main

import (
	"errors"

	"github.com/spf13/cobra"

	"MovieCurator/internal/app"
	"MovieCurator/internal/usecase"
)

func newCurateCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var pages int

	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Run one curation pass and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if pages != 0 && (pages < usecase.MinPages || pages > usecase.MaxPages) {
				return errors.New("--pages must be between 1 and 10")
			}

			application, err := app.New(cmd.Context(), cfg, ctx.logger(cmd))
			if err != nil {
				return err
			}
			defer application.Close()

			result := application.Curator().Curate(cmd.Context(), usecase.CurateRequest{Force: force, MaxPages: pages})
			if err := writeJSON(cmd, result); err != nil {
				return err
			}
			if !result.Success {
				return errors.New("curation failed: " + result.Error)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore the staleness window")
	cmd.Flags().IntVar(&pages, "pages", 0, "Number of provider pages to fetch (1-10, default from config)")
	return cmd
}
