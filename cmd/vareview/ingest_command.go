package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vareview/internal/config"
	"vareview/internal/ingest"
	"vareview/internal/jobclient"
	"vareview/internal/library"
	"vareview/internal/services"
)

// libraryDirPrompter answers the flow's folder prompt with a fixed directory.
type libraryDirPrompter struct {
	path string
}

func (p libraryDirPrompter) PromptRootDir(context.Context) (library.Dir, error) {
	if strings.TrimSpace(p.path) == "" {
		return nil, errors.New("no library directory configured (set paths.library_dir or pass --library)")
	}
	return library.NewOSDir(p.path), nil
}

// downloadBar mirrors flow progress onto a terminal progress bar.
type downloadBar struct {
	out   io.Writer
	bar   *progressbar.ProgressBar
	total int64
}

func (d *downloadBar) observe(s ingest.Snapshot) {
	if s.State != ingest.StateDownloading {
		if d.bar != nil {
			_ = d.bar.Finish()
			d.bar = nil
		}
		return
	}
	if d.bar == nil || d.total != s.Progress.Total {
		d.total = s.Progress.Total
		d.bar = progressbar.NewOptions64(d.total,
			progressbar.OptionSetWriter(d.out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = d.bar.Set64(s.Progress.Received)
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var libraryFlag string

	cmd := &cobra.Command{
		Use:   "ingest <job-id>",
		Short: "Download a remote job's artifacts into the local library",
		Long: "Loads the job from the local library when a complete copy exists; otherwise\n" +
			"downloads the artifact bundle, merges its annotation files and saves the\n" +
			"dataset under the library root.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.library()
			if err != nil {
				return err
			}
			prompt := libraryDirPrompter{path: cfg.Paths.LibraryDir}
			if strings.TrimSpace(libraryFlag) != "" {
				expanded, err := config.ExpandPath(libraryFlag)
				if err != nil {
					return err
				}
				dir := library.NewOSDir(expanded)
				if !library.EnsurePermission(dir, library.ModeReadWrite) {
					return fmt.Errorf("%w: %s", library.ErrPermissionDenied, expanded)
				}
				if err := store.SetRootDirHandle(cmd.Context(), dir); err != nil {
					return err
				}
				prompt.path = expanded
			}

			var observer ingest.Observer
			if !ctx.JSONMode() && isTerminal(os.Stderr) {
				bar := &downloadBar{out: os.Stderr}
				observer = bar.observe
			}
			client := jobclient.NewFromConfig(cfg)
			flow := ingest.NewFromConfig(cfg, client, store, prompt, observer, ctx.loggerValue())

			jobID := strings.TrimSpace(args[0])
			runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())
			outcome, err := flow.Start(runCtx, jobID)
			if err != nil {
				return err
			}
			return printIngestOutcome(cmd, ctx.JSONMode(), jobID, outcome)
		},
	}

	cmd.Flags().StringVar(&libraryFlag, "library", "", "Library root folder to use and remember")
	return cmd
}

func printIngestOutcome(cmd *cobra.Command, jsonMode bool, jobID string, out ingest.Outcome) error {
	doc := out.Document
	if jsonMode {
		return writeJSON(cmd, map[string]any{
			"job_id":     jobID,
			"from_cache": out.FromCache,
			"persisted":  out.Persisted,
			"dataset":    out.DatasetEntry,
			"video":      out.VideoFile.Name(),
			"video_size": out.VideoFile.Size(),
			"source":     doc.Metadata.Source,
			"counts":     doc.Counts(),
			"pipelines":  doc.Metadata.Pipelines,
			"warnings":   nonNil(doc.Metadata.Warnings),
		})
	}

	w := cmd.OutOrStdout()
	origin := "downloaded"
	if out.FromCache {
		origin = "local library"
	}
	rows := [][]string{
		{"Job", jobID},
		{"Origin", origin},
		{"Saved", yesNo(out.Persisted)},
		{"Video", fmt.Sprintf("%s (%s)", out.VideoFile.Name(), formatBytes(out.VideoFile.Size()))},
		{"Pipelines", strings.Join(doc.Metadata.Pipelines, ", ")},
		{"Records", strconv.Itoa(doc.Total())},
	}
	if out.DatasetEntry.DatasetID != "" {
		rows = append(rows, []string{"Dataset", out.DatasetEntry.DatasetID}, []string{"Folder", out.DatasetEntry.FolderName})
	}
	fmt.Fprint(w, renderTable([]string{"Field", "Value"}, rows, nil))
	printWarnings(cmd, doc.Metadata.Warnings)
	return nil
}
