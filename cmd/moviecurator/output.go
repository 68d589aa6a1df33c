package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"MovieCurator/internal/domain"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(payload, '\n'))
	return err
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// featuredTable renders rank, title, release and the three numeric columns right-aligned.
func featuredTable(movies []domain.FeaturedMovie) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Title", "Release", "Score", "Rating", "Popularity"})
	for _, m := range movies {
		tw.AppendRow(table.Row{
			m.RankPosition,
			m.Title,
			m.ReleaseDate.Format("2006-01-02"),
			strconv.FormatFloat(m.CurationScore, 'f', 1, 64),
			strconv.FormatFloat(m.VoteAverage, 'f', 1, 64),
			strconv.FormatFloat(m.Popularity, 'f', 1, 64),
		})
	}
	right := func(n int) table.ColumnConfig {
		return table.ColumnConfig{Number: n, Align: text.AlignRight, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs([]table.ColumnConfig{right(1), right(4), right(5), right(6)})
	return tw.Render()
}

func statusTable(status domain.CurationStatus) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Running", strconv.FormatBool(status.IsRunning)})
	tw.AppendRow(table.Row{"Last curation", formatTime(status.LastCuration)})
	tw.AppendRow(table.Row{"Next curation due", formatTime(status.NextCurationDue)})
	return tw.Render()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
