package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/batch"
	"github.com/jonathan/apply-autopilot/internal/observability"
	"github.com/jonathan/apply-autopilot/internal/pipeline"
	"github.com/jonathan/apply-autopilot/internal/types"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		limit       int
		status      string
		concurrency int
		companyCap  int
		decision    string
		autoPacket  bool
		lockWait    time.Duration
		noLock      bool
		seedJSON    string
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the pipeline over the newest eligible jobs",
		Long: `Selects up to --limit jobs in --status (newest posting first), skips any job whose company
already has the maximum number of open applications and runs the pipeline for the rest. Prints
one JSON result per selected job.

The company cap comes from the profile's internship preferences, then
max_applications_per_company. --seed-json imports a JSON list of postings first, which makes
the in-memory store usable for dry runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, root)
			if err != nil {
				return err
			}
			defer a.Close()

			if seedJSON != "" {
				ids, err := a.ingestion().FromJSONFile(ctx, a.cfg.ActorID, seedJSON)
				if err != nil {
					return err
				}
				a.log.Info("seeded jobs", "path", seedJSON, "count", len(ids))
			}

			orch, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}
			opts := batch.Options{
				UserID:         a.cfg.UserID,
				ActorID:        a.cfg.ActorID,
				Status:         types.JobStatus(strings.ToUpper(strings.TrimSpace(status))),
				Limit:          limit,
				CompanyCap:     a.companyCap(),
				Concurrency:    a.cfg.BatchConcurrency,
				ManualDecision: decision,
				AutoPacket:     autoPacket,
				LockPath:       a.cfg.LockPath,
				LockWait:       lockWait,
			}
			if cmd.Flags().Changed("company-cap") {
				opts.CompanyCap = companyCap
			}
			if cmd.Flags().Changed("concurrency") {
				opts.Concurrency = concurrency
			}
			if noLock {
				opts.LockPath = ""
			}
			results, err := batch.New(a.store, orch, a.log).Run(ctx, opts)
			if err != nil {
				return err
			}
			if verbose {
				observability.NewPrinter(cmd.OutOrStdout()).PrintBatchResults(results)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of jobs to select")
	cmd.Flags().StringVar(&status, "status", string(types.StatusDiscovered), "Job status to select")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Pipelines to run at once (overrides batch_concurrency)")
	cmd.Flags().IntVar(&companyCap, "company-cap", 0, "Maximum open applications per company (0 disables the cap)")
	cmd.Flags().StringVar(&decision, "decision", pipeline.DecisionAutoApprove, "Manual decision for every run: AUTO_APPROVE or HOLD")
	cmd.Flags().BoolVar(&autoPacket, "auto-packet", false, "Record that packets were requested automatically")
	cmd.Flags().DurationVar(&lockWait, "lock-wait", 0, "How long to wait for another batch to release the lock")
	cmd.Flags().BoolVar(&noLock, "no-lock", false, "Do not take the cross-process batch lock")
	cmd.Flags().StringVar(&seedJSON, "seed-json", "", "Import postings from a JSON file before selecting jobs")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print a human-readable summary instead of JSON")
	return cmd
}

var _ batch.Runner = (*pipeline.Orchestrator)(nil)
