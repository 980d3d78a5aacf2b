package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"vhxdl/internal/catalog"
)

type planRow struct {
	Kind    string `json:"kind"`
	VideoID string `json:"video_id"`
	Series  string `json:"series,omitempty"`
	Title   string `json:"title"`
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var source sourceFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Resolve selectors and list the files a run would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := source.apply(cmd, cfg); err != nil {
				return err
			}
			if err := cfg.ValidateRun(); err != nil {
				return err
			}
			logger, err := ctx.sessionLogger(false)
			if err != nil {
				return err
			}
			api, err := newAPIStack(cfg, logger)
			if err != nil {
				return err
			}
			jobs, err := api.resolver.Resolve(cmd.Context(), selectors(cfg))
			if err != nil {
				return err
			}

			rows := planRows(jobs)
			if asJSON {
				return writeJSON(cmd, rows)
			}
			printPlan(cmd, rows)
			return nil
		},
	}
	source.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func planRows(jobs []catalog.Job) []planRow {
	rows := make([]planRow, 0, len(jobs))
	for _, job := range jobs {
		_, err := os.Stat(job.Path)
		rows = append(rows, planRow{
			Kind:    job.Kind,
			VideoID: job.VideoID,
			Series:  job.Series,
			Title:   job.Title,
			Path:    job.Path,
			Present: err == nil,
		})
	}
	return rows
}

func printPlan(cmd *cobra.Command, rows []planRow) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "Nothing to download")
		return
	}
	table := make([][]string, 0, len(rows))
	pending := 0
	for i, row := range rows {
		if !row.Present {
			pending++
		}
		table = append(table, []string{
			strconv.Itoa(i + 1),
			row.Kind,
			row.VideoID,
			yesNo(row.Present),
			row.Path,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Kind", "Video", "Present", "Path"},
		table,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		isTerminal(out),
	))
	fmt.Fprintf(out, "%d planned, %d to download\n", len(rows), pending)
}
