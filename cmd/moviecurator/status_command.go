package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"MovieCurator/internal/app"
	"MovieCurator/internal/usecase"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show when the featured list was last curated",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			curator := usecase.NewCurator(usecase.CuratorDeps{
				Repository: store.Repository,
				Logger:     ctx.logger(cmd),
				Interval:   cfg.Curation.Interval,
			})
			status := curator.Status(cmd.Context())
			if asJSON || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd, status)
			}

			fmt.Fprintln(cmd.OutOrStdout(), statusTable(status))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON even on a terminal")
	return cmd
}
