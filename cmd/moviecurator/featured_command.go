package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"MovieCurator/internal/app"
	"MovieCurator/internal/ports"
)

func newFeaturedCommand(ctx *commandContext) *cobra.Command {
	var query ports.ReadQuery
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "featured",
		Short: "List the current featured movies",
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

			movies, err := store.Repository.ReadAll(cmd.Context(), query)
			if err != nil {
				return err
			}
			if asJSON || !isTerminal(cmd.OutOrStdout()) {
				return writeJSON(cmd, movies)
			}
			if len(movies) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No featured movies.")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), featuredTable(movies))
			return nil
		},
	}

	cmd.Flags().StringVar(&query.SortBy, "sort", "", "Sort column (rank_position, curation_score, release_date, popularity, vote_average)")
	cmd.Flags().StringVar(&query.Order, "order", "", "Sort direction (asc or desc)")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum rows to return (1-10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON even on a terminal")
	return cmd
}
