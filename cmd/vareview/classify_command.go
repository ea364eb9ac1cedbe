package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vareview/internal/filetype"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>...",
		Short: "Detect the annotation type of files, directories, or zip archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, warnings, err := collectInputs(args)
			if err != nil {
				return err
			}
			detected := filetype.DetectAll(cmd.Context(), files)

			if ctx.JSONMode() {
				type jsonRow struct {
					File string        `json:"file"`
					Size int64         `json:"size"`
					Info filetype.Info `json:"info"`
				}
				rows := make([]jsonRow, 0, len(detected))
				for _, d := range detected {
					rows = append(rows, jsonRow{File: d.File.Name(), Size: d.File.Size(), Info: d.Info})
				}
				return writeJSON(cmd, map[string]any{"files": rows, "warnings": nonNil(warnings)})
			}

			rows := make([][]string, 0, len(detected))
			for _, d := range detected {
				rows = append(rows, []string{
					d.File.Name(),
					formatBytes(d.File.Size()),
					string(d.Info.Type),
					string(d.Info.Confidence),
					d.Info.Reason,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderTable(
				[]string{"File", "Size", "Type", "Confidence", "Reason"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			printWarnings(cmd, warnings)
			return nil
		},
	}
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  - %s\n", w)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
