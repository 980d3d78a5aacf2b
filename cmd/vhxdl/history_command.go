package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"vhxdl/internal/catalog"
	"vhxdl/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			printHistory(cmd, entries, total)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show; 0 shows all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	return cmd
}

func printHistory(cmd *cobra.Command, entries []history.Entry, total int) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No downloads recorded")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if e.Kind == catalog.KindEpisode {
			title = fmt.Sprintf("%s S%02dE%02d %s", e.Series, e.Season, e.Episode, e.Title)
		}
		rows = append(rows, []string{
			e.CompletedAt.Local().Format(time.DateTime),
			e.Kind,
			title,
			humanize.IBytes(uint64(max(e.Bytes, 0))),
			e.Path,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Completed", "Kind", "Title", "Size", "Path"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		isTerminal(out),
	))
	fmt.Fprintf(out, "Showing %d of %d recorded downloads\n", len(entries), total)
}
