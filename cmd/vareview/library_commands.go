package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vareview/internal/config"
	"vareview/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and manage the local dataset library",
	}

	libraryCmd.AddCommand(newLibraryRootCommand(ctx))
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryShowCommand(ctx))
	libraryCmd.AddCommand(newLibraryRemoveCommand(ctx))

	return libraryCmd
}

func newLibraryRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "root",
		Short: "Show or change the library root folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			root, ok := store.RootDirHandle(cmd.Context())
			if ctx.JSONMode() {
				payload := map[string]any{"configured": ok}
				if ok {
					payload["path"] = root.Path()
					payload["datasets_dir"] = library.ResolveDatasetsDir(root).Path()
					payload["writable"] = library.EnsurePermission(root, library.ModeReadWrite)
				}
				return writeJSON(cmd, payload)
			}
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "No library root configured (set one with: vareview library root set <dir>)")
				return nil
			}
			fmt.Fprintf(out, "Library root: %s\n", root.Path())
			fmt.Fprintf(out, "Datasets dir: %s\n", library.ResolveDatasetsDir(root).Path())
			fmt.Fprintf(out, "Writable:     %s\n", yesNo(library.EnsurePermission(root, library.ModeReadWrite)))
			return nil
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "set [dir]",
		Short: "Remember a folder as the library root (defaults to paths.library_dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := cfg.Paths.LibraryDir
			if len(args) == 1 {
				if target, err = config.ExpandPath(strings.TrimSpace(args[0])); err != nil {
					return err
				}
			}
			if target == "" {
				return errors.New("library directory is required")
			}
			store, err := ctx.library()
			if err != nil {
				return err
			}
			dir := library.NewOSDir(target)
			if !library.EnsurePermission(dir, library.ModeReadWrite) {
				return fmt.Errorf("%w: %s", library.ErrPermissionDenied, target)
			}
			if err := store.SetRootDirHandle(cmd.Context(), dir); err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"path": dir.Path()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Library root set to %s\n", dir.Path())
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the library root (datasets on disk are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			if err := store.ClearRootDirHandle(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Library root cleared")
			return nil
		},
	})

	return rootCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets recorded in the library index",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			listings := store.ListDatasets(cmd.Context())
			if ctx.JSONMode() {
				if listings == nil {
					listings = []library.Listing{}
				}
				return writeJSON(cmd, listings)
			}
			out := cmd.OutOrStdout()
			if len(listings) == 0 {
				fmt.Fprintln(out, "Library is empty")
				return nil
			}
			rows := make([][]string, 0, len(listings))
			for _, l := range listings {
				rows = append(rows, []string{l.JobID, l.FolderName, l.VideoFileName, formatAge(l.CreatedAt)})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Job", "Folder", "Video", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newLibraryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a stored dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			ds, ok := store.LoadDataset(cmd.Context(), jobID)
			if !ok {
				return fmt.Errorf("no complete local dataset for job %s", jobID)
			}
			doc := ds.Document

			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{
					"job_id":     jobID,
					"entry":      ds.Entry,
					"folder":     ds.Folder.Path(),
					"video":      ds.Video.Name(),
					"video_size": ds.Video.Size(),
					"counts":     doc.Counts(),
					"pipelines":  doc.Metadata.Pipelines,
					"warnings":   nonNil(doc.Metadata.Warnings),
					"manifest":   ds.Manifest,
				})
			}

			out := cmd.OutOrStdout()
			title := ""
			if ds.Manifest != nil {
				title = ds.Manifest.Title
			}
			rows := [][]string{
				{"Job", jobID},
				{"Dataset", ds.Entry.DatasetID},
				{"Title", title},
				{"Folder", ds.Folder.Path()},
				{"Video", fmt.Sprintf("%s (%s)", ds.Video.Name(), formatBytes(ds.Video.Size()))},
				{"Created", formatAge(ds.Entry.CreatedAt)},
				{"Pipelines", strings.Join(doc.Metadata.Pipelines, ", ")},
				{"Records", fmt.Sprintf("%d", doc.Total())},
				{"Warnings", fmt.Sprintf("%d", len(doc.Metadata.Warnings))},
			}
			for _, a := range []struct{ label, kind string }{
				{"Video file", library.ArtifactVideo},
				{"Annotations", library.ArtifactAnnotationsMerged},
				{"Archive", library.ArtifactArchive},
				{"Manifest", library.ArtifactManifest},
			} {
				if p := ds.Manifest.ArtifactPath(a.kind); p != "" {
					rows = append(rows, []string{a.label, p})
				}
			}
			fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newLibraryRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Forget a dataset, optionally deleting its folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.library()
			if err != nil {
				return err
			}
			jobID := strings.TrimSpace(args[0])
			if err := store.RemoveDataset(cmd.Context(), jobID, deleteFiles); err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, map[string]any{"removed": jobID, "files_deleted": deleteFiles})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dataset for job %s\n", jobID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "Also delete the dataset folder from disk")
	return cmd
}
