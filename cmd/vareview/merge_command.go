package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vareview/internal/annotations"
	"vareview/internal/config"
	"vareview/internal/filetype"
	"vareview/internal/fileutil"
	"vareview/internal/merge"
	"vareview/internal/openface"
)

type mergeSummary struct {
	Output         string         `json:"output,omitempty"`
	FilesProcessed int            `json:"files_processed"`
	Counts         map[string]int `json:"counts"`
	Pipelines      []string       `json:"pipelines"`
	ConfidentFaces int            `json:"confident_faces"`
	FaceThreshold  float64        `json:"face_threshold"`
	Warnings       []string       `json:"warnings"`
}

func newMergeCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var noProbe bool

	cmd := &cobra.Command{
		Use:   "merge <path>...",
		Short: "Merge local annotation files into one canonical document",
		Long: "Classifies every input, parses the annotation files and writes the merged\n" +
			"document. Without --output the document is printed to stdout.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			files, readWarnings, err := collectInputs(args)
			if err != nil {
				return err
			}
			mergeCfg := *cfg
			if noProbe {
				mergeCfg.Merge.ProbeVideo = false
			}
			engine := merge.NewFromConfig(&mergeCfg, ctx.loggerValue())
			detected := filetype.DetectAll(cmd.Context(), files)
			result, err := engine.Merge(cmd.Context(), detected, nil)
			if err != nil {
				return err
			}
			doc := result.Document
			doc.Metadata.Warnings = append(doc.Metadata.Warnings, readWarnings...)

			data, err := annotations.Encode(doc)
			if err != nil {
				return err
			}
			summary := summarizeMerge(cfg, result.FilesProcessed, doc)
			if strings.TrimSpace(outputPath) == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return err
			}
			if err := fileutil.WriteBytesAtomic(target, data, 0o644); err != nil {
				return fmt.Errorf("write merged document: %w", err)
			}
			summary.Output = target
			if ctx.JSONMode() {
				return writeJSON(cmd, summary)
			}
			printMergeSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the merged document to this file")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "Skip ffprobe even when merge.probe_video is enabled")
	return cmd
}

func summarizeMerge(cfg *config.Config, processed int, doc *annotations.Document) mergeSummary {
	threshold := cfg.Merge.FaceConfidenceThreshold
	return mergeSummary{
		FilesProcessed: processed,
		Counts:         doc.Counts(),
		Pipelines:      doc.Metadata.Pipelines,
		ConfidentFaces: len(openface.FilterByConfidence(doc.FaceAnalysis, threshold)),
		FaceThreshold:  threshold,
		Warnings:       nonNil(doc.Metadata.Warnings),
	}
}

func printMergeSummary(cmd *cobra.Command, s mergeSummary) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(annotations.Kinds))
	total := 0
	for _, kind := range annotations.Kinds {
		rows = append(rows, []string{kind, strconv.Itoa(s.Counts[kind])})
		total += s.Counts[kind]
	}
	fmt.Fprint(out, tableSpec{
		headers: []string{"Pipeline", "Records"},
		aligns:  []columnAlignment{alignLeft, alignRight},
		rows:    rows,
		footer:  []string{"total", strconv.Itoa(total)},
	}.render())
	fmt.Fprintf(out, "Files processed: %d\n", s.FilesProcessed)
	if s.Counts[annotations.KindFaceAnalysis] > 0 {
		fmt.Fprintf(out, "Faces at confidence >= %.2f: %d\n", s.FaceThreshold, s.ConfidentFaces)
	}
	fmt.Fprintf(out, "Wrote %s\n", s.Output)
	printWarnings(cmd, s.Warnings)
}
