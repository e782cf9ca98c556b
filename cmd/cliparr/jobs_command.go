package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cliparr/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var filter api.JobFilter

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List analysis jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			list, err := client.Jobs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs found")
				return nil
			}

			color := shouldColorize(out)
			rows := make([][]string, 0, len(list))
			for _, job := range list {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					job.Kind,
					job.Scope,
					colorize(color, stateColor(job.State), job.State),
					strconv.Itoa(job.Attempts),
					relativeTime(job.UpdatedAt),
					job.LastError,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Scope", "State", "Attempts", "Updated", "Error"},
				rows, 0, 4))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Kind, "kind", "", "Filter by job kind (extract, match, aggregate)")
	cmd.Flags().StringVar(&filter.State, "state", "", "Filter by job state")
	cmd.Flags().Int64Var(&filter.ShowID, "show", 0, "Filter by show id")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum number of jobs to list")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Number of jobs to skip")
	return cmd
}

func relativeTime(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return humanize.Time(parsed)
}
