package main

import (
	"github.com/spf13/cobra"
)

func newFetchFormCmd(root *rootOptions) *cobra.Command {
	var jobID string
	cmd := &cobra.Command{
		Use:   "fetch-form",
		Short: "Open a job's application form and store its field catalog",
		Long: `Opens the job URL in a browser session, triggers the apply flow, extracts every interactive
field from the page and its frames plus questions embedded in structured-data scripts, and
replaces the job's stored catalog. Prints a summary as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseJobID(jobID)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.store.GetJob(ctx, id)
			if err != nil {
				return err
			}
			summary, err := a.catalog().Refresh(ctx, job, a.cfg.ActorID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job id whose form to catalog (required)")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}
