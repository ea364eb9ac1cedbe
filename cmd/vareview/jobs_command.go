package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vareview/internal/jobclient"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Query the remote job service",
	}

	var perPage int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jobs, err := jobclient.NewFromConfig(cfg).ListJobs(cmd.Context(), perPage)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				if jobs == nil {
					jobs = []jobclient.Job{}
				}
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{job.ID, job.Status, job.VideoFilename, strings.Join(job.Pipelines, ", "), job.CreatedAt})
			}
			fmt.Fprint(out, renderTable([]string{"ID", "Status", "Video", "Pipelines", "Created"}, rows, nil))
			return nil
		},
	}
	listCmd.Flags().IntVar(&perPage, "limit", 100, "Maximum number of jobs to fetch")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check the job service health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			health, err := jobclient.NewFromConfig(cfg).Health(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, health)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (version %s)\n", cfg.Server.BaseURL, health.Status, health.Version)
			return nil
		},
	}

	jobsCmd.AddCommand(listCmd, healthCmd)
	return jobsCmd
}
