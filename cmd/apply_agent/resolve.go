package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// resolveOutput is what resolve prints. Sensitive values are redacted.
type resolveOutput struct {
	JobID  string                `json:"job_id"`
	Fields []types.ResolvedField `json:"fields"`
}

func newResolveCmd(root *rootOptions) *cobra.Command {
	var (
		jobID   string
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the values that would be filled into a job's form",
		Long: `Resolves every catalogued field of a job against the stored drafts and the profile, the
same way auto-fill does, and prints the payload with sensitive values redacted. The catalog is
fetched first when none is stored or --refresh is set.`,
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
			catalog := a.catalog()
			if refresh {
				if _, err := catalog.Refresh(ctx, job, a.cfg.ActorID); err != nil {
					return err
				}
			}
			fields, err := catalog.Ensure(ctx, job, a.cfg.ActorID)
			if err != nil {
				return err
			}
			resolved := a.resolver().Resolve(fields, job.Drafts, a.profile)
			return writeJSON(cmd.OutOrStdout(), resolveOutput{JobID: job.ID.String(), Fields: formfill.Redacted(resolved)})
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job id to resolve (required)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch the form again before resolving")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}
