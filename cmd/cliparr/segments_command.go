package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cliparr/internal/api"
)

func newSegmentsCommand(ctx *commandContext) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "segments <show-id>",
		Short: "Show detected repeated segments for a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || showID <= 0 {
				return fmt.Errorf("invalid show id %q", args[0])
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			response, err := client.Segments(cmd.Context(), showID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(response.Segments) == 0 {
				fmt.Fprintf(out, "No segments detected for show %d yet\n", showID)
				return nil
			}

			rows := make([][]string, 0, len(response.Segments))
			for _, seg := range response.Segments {
				rows = append(rows, []string{
					seg.Kind,
					strconv.Itoa(seg.Ordinal),
					fmt.Sprintf("%.2f", seg.Confidence),
					strconv.Itoa(seg.SupportingEpisodes),
					typicalSpan(seg.Ranges),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Kind", "#", "Confidence", "Episodes", "Typical span"},
				rows, 1, 2, 3))

			if verbose {
				for _, seg := range response.Segments {
					fmt.Fprintf(out, "\n%s %d per episode:\n", seg.Kind, seg.Ordinal)
					for _, r := range seg.Ranges {
						fmt.Fprintf(out, "  episode %-6d %s - %s\n",
							r.EpisodeID, formatTimestampMS(r.StartMS), formatTimestampMS(r.EndMS))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List per-episode ranges")
	return cmd
}

// typicalSpan summarizes a segment by its first occurrence's range.
func typicalSpan(ranges []api.SegmentRange) string {
	if len(ranges) == 0 {
		return ""
	}
	return fmt.Sprintf("%s - %s", formatTimestampMS(ranges[0].StartMS), formatTimestampMS(ranges[0].EndMS))
}
