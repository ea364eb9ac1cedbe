package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vareview/internal/config"
	"vareview/internal/rttm"
	"vareview/internal/source"
)

func newSpeakersCommand(ctx *commandContext) *cobra.Command {
	var gap float64
	var at float64

	cmd := &cobra.Command{
		Use:   "speakers <file.rttm>",
		Short: "Summarize speaker activity in an RTTM file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			f, err := source.FromPath(path)
			if err != nil {
				return err
			}
			result, err := rttm.Parse(cmd.Context(), f)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("gap") {
				gap = cfg.Merge.RTTMMergeGap
			}
			merged := rttm.MergeOverlapping(result.Segments, gap)
			stats := rttm.Stats(merged)

			var active []string
			atSet := cmd.Flags().Changed("at")
			if atSet {
				active = rttm.ActiveSpeakersAt(merged, at)
			}

			if ctx.JSONMode() {
				payload := map[string]any{
					"gap":      gap,
					"segments": len(merged),
					"speakers": stats,
					"warnings": nonNil(result.Warnings),
				}
				if atSet {
					payload["active_at"] = map[string]any{"time": at, "speakers": nonNil(active)}
				}
				return writeJSON(cmd, payload)
			}

			rows := make([][]string, 0, len(stats))
			for _, s := range stats {
				rows = append(rows, []string{
					s.SpeakerID,
					strconv.Itoa(s.Segments),
					formatSeconds(s.TotalSeconds),
					formatSeconds(s.FirstStart),
					formatSeconds(s.LastEnd),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"Speaker", "Segments", "Seconds", "First", "Last"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintf(out, "%d segment(s) after merging gaps <= %ss\n", len(merged), formatSeconds(gap))
			if atSet {
				if len(active) == 0 {
					fmt.Fprintf(out, "No speaker active at %ss\n", formatSeconds(at))
				} else {
					fmt.Fprintf(out, "Active at %ss: %s\n", formatSeconds(at), strings.Join(active, ", "))
				}
			}
			printWarnings(cmd, result.Warnings)
			return nil
		},
	}

	cmd.Flags().Float64Var(&gap, "gap", 0, "Join same-speaker segments separated by at most this many seconds (default from config)")
	cmd.Flags().Float64Var(&at, "at", 0, "Also list the speakers active at this time in seconds")
	return cmd
}
