package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"imagejobs/internal/adapter/repo"
	"imagejobs/internal/domain"
)

var (
	listOwner string
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's image jobs, newest first",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Owner id (required)")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print JSON instead of a table")
	if err := listCmd.MarkFlagRequired("owner"); err != nil {
		panic(fmt.Sprintf("failed to mark owner flag as required: %v", err))
	}
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	runner, closeDB, err := openRunner(ctx, "list")
	if err != nil {
		return err
	}
	defer closeDB()

	jobs, err := repo.NewJobRepository(runner).ListByOwner(ctx, listOwner)
	if err != nil {
		return err
	}
	if listJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}
	return printJobs(cmd.OutOrStdout(), jobs)
}

func printJobs(w io.Writer, jobs []domain.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tCREATED\tRESULT")
	for _, j := range jobs {
		result := j.ArtifactRef
		if j.Status == domain.JobStatusFailed {
			result = j.ErrorDetail
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Kind, j.Status, j.CreatedAt.Format(time.RFC3339), result)
	}
	return tw.Flush()
}
