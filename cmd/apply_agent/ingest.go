package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/ingestion"
)

// ingestOutput lists the jobs an intake created or found again.
type ingestOutput struct {
	JobIDs []uuid.UUID `json:"job_ids"`
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store job postings as DISCOVERED jobs",
	}
	cmd.AddCommand(newIngestURLCmd(root), newIngestJSONCmd(root), newIngestRSSCmd(root))
	return cmd
}

func newIngestURLCmd(root *rootOptions) *cobra.Command {
	var req ingestion.URLRequest
	cmd := &cobra.Command{
		Use:   "url <posting-url>",
		Short: "Fetch one posting and catalog its application form",
		Long: `Downloads the posting (rendering it in a browser when the page is script-driven), stores it
and refreshes its form catalog. Catalog failures are audited and do not fail the intake.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			return runIngest(cmd, root, func(a *app) ([]uuid.UUID, error) {
				return a.ingestion().FromURL(cmd.Context(), a.cfg.ActorID, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.SourceName, "source", ingestion.SourceManualURL, "Source name the job is filed under")
	cmd.Flags().StringVar(&req.ExternalID, "external-id", "", "External id (defaults to the URL)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Title override")
	cmd.Flags().StringVar(&req.Company, "company", "", "Company override")
	cmd.Flags().StringVar(&req.Location, "location", "", "Location override")
	cmd.Flags().StringSliceVar(&req.Questions, "question", nil, "Application question to record (repeatable)")
	return cmd
}

func newIngestJSONCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "json <file>",
		Short: "Import a JSON list of posting payloads",
		Long: `Reads a JSON array of job objects. Each needs external_id, id or url; the file name (without
extension) names the source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, func(a *app) ([]uuid.UUID, error) {
				return a.ingestion().FromJSONFile(cmd.Context(), a.cfg.ActorID, args[0])
			})
		},
	}
}

func newIngestRSSCmd(root *rootOptions) *cobra.Command {
	var req ingestion.RSSRequest
	cmd := &cobra.Command{
		Use:   "rss <feed-url>",
		Short: "Import every item of an RSS or Atom feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.FeedURL = args[0]
			return runIngest(cmd, root, func(a *app) ([]uuid.UUID, error) {
				return a.ingestion().FromRSS(cmd.Context(), a.cfg.ActorID, req)
			})
		},
	}
	cmd.Flags().StringVar(&req.Source, "source", "", "Source name the feed's jobs are filed under (required)")
	cmd.Flags().BoolVar(&req.AutomationAllowed, "automation-allowed", false, "Allow automated form filling for this source")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, fn func(a *app) ([]uuid.UUID, error)) error {
	a, err := newApp(cmd.Context(), root)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := fn(a)
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return writeJSON(cmd.OutOrStdout(), ingestOutput{JobIDs: ids})
}
