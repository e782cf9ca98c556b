package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and per-show analysis status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			color := shouldColorize(out)

			runState := colorize(color, ansiGreen, "running")
			if !status.Running {
				runState = colorize(color, ansiRed, "stopped")
			}
			fmt.Fprintf(out, "Daemon:   %s (pid %d)\n", runState, status.PID)
			fmt.Fprintf(out, "Workers:  %d (%d busy)\n", status.Scheduler.Workers, status.Scheduler.InFlight)
			fmt.Fprintf(out, "Catalog:  loaded=%s\n", yesNo(status.CatalogLoaded))
			fmt.Fprintf(out, "Database: %s\n", status.DatabasePath)
			for _, dep := range status.Dependencies {
				availability := colorize(color, ansiGreen, "ok")
				if !dep.Available {
					availability = colorize(color, ansiRed, dep.Detail)
				}
				fmt.Fprintf(out, "%-9s %s (%s)\n", dep.Name+":", availability, dep.Command)
			}

			if len(status.JobCounts) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderJobCounts(status.JobCounts))
			}

			if len(status.Shows) > 0 {
				rows := make([][]string, 0, len(status.Shows))
				for _, show := range status.Shows {
					segs := strconv.Itoa(show.Segments)
					if show.InsufficientData {
						segs = colorize(color, ansiYellow, "insufficient data")
					}
					rows = append(rows, []string{
						strconv.FormatInt(show.ShowID, 10),
						show.Title,
						fmt.Sprintf("%d/%d", show.Fingerprinted, show.Episodes),
						strconv.Itoa(show.Matches),
						segs,
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Show", "Title", "Fingerprinted", "Matches", "Segments"},
					rows, 0, 2, 3))
			}
			return nil
		},
	}
}

func renderJobCounts(counts map[string]map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	states := []string{"pending", "running", "retrying", "succeeded", "failed", "skipped"}
	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		row := []string{kind}
		for _, state := range states {
			row = append(row, strconv.Itoa(counts[kind][state]))
		}
		rows = append(rows, row)
	}
	return renderTable(
		[]string{"Kind", "Pending", "Running", "Retrying", "Succeeded", "Failed", "Skipped"},
		rows, 1, 2, 3, 4, 5, 6)
}
