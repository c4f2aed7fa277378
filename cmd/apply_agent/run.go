package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/observability"
	"github.com/jonathan/apply-autopilot/internal/pipeline"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var (
		jobID      string
		decision   string
		autoPacket bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the application pipeline for one job",
		Long: `Walks one job through scout, parser, scorer, writer, verifier, approval gate, auto-fill,
packet builder and tracker, then prints the final run state as JSON. Node failures are reported
in the run state's errors and never abort the run.`,
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

			orch, err := a.orchestrator(ctx)
			if err != nil {
				return err
			}
			st, err := orch.Run(ctx, pipeline.Input{
				JobID:          id,
				UserID:         a.cfg.UserID,
				ActorID:        a.cfg.ActorID,
				ManualDecision: decision,
				AutoPacket:     autoPacket,
			})
			if err != nil {
				return err
			}
			if verbose {
				observability.NewPrinter(cmd.OutOrStdout()).PrintRunState(st)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), st)
		},
	}
	cmd.Flags().StringVar(&jobID, "job-id", "", "Job id to run (required)")
	cmd.Flags().StringVar(&decision, "decision", pipeline.DecisionAutoApprove, "Manual decision: AUTO_APPROVE or HOLD")
	cmd.Flags().BoolVar(&autoPacket, "auto-packet", false, "Record that a packet was requested automatically")
	_ = cmd.MarkFlagRequired("job-id")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print a human-readable summary instead of JSON")
	return cmd
}
