package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
)

// RSSRequest names a feed to import. AutomationAllowed is recorded on the source and gates
// submission for every job it yields.
type RSSRequest struct {
	Source            string
	FeedURL           string
	AutomationAllowed bool
}

// FromRSS imports every item of a feed as a job under req.Source.
func (s *Service) FromRSS(ctx context.Context, actorID string, req RSSRequest) ([]uuid.UUID, error) {
	if req.Source == "" || req.FeedURL == "" {
		return nil, fmt.Errorf("feed source and URL are required")
	}
	if err := s.allow(ctx, "ingest:rss:"+req.Source); err != nil {
		return nil, err
	}
	if err := s.store.UpsertJobSource(ctx, req.Source, req.AutomationAllowed); err != nil {
		return nil, fmt.Errorf("failed to register source %s: %w", req.Source, err)
	}

	parser := gofeed.NewParser()
	if s.opts.Fetch != nil && s.opts.Fetch.UserAgent != "" {
		parser.UserAgent = s.opts.Fetch.UserAgent
	}
	feed, err := parser.ParseURLWithContext(req.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, req.FeedURL, err)
	}
	s.opts.Log.Debug("feed parsed", "source", req.Source, "items", len(feed.Items))

	payloads := make([]map[string]any, 0, len(feed.Items))
	for _, item := range feed.Items {
		if payload := itemPayload(item); payload != nil {
			payloads = append(payloads, payload)
		}
	}
	return s.importJobs(ctx, actorID, req.Source, req.AutomationAllowed, payloads)
}

// itemPayload maps a feed item to a job payload, or nil when the item has no usable identity.
func itemPayload(item *gofeed.Item) map[string]any {
	externalID := firstNonBlank(item.GUID, item.Link, item.Title)
	if externalID == "" {
		return nil
	}
	company := ""
	if item.Author != nil {
		company = strings.TrimSpace(item.Author.Name)
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		company = strings.TrimSpace(item.Authors[0].Name)
	}
	summary, err := PageText(item.Description)
	if err != nil {
		summary = item.Description
	}
	payload := map[string]any{
		"external_id": externalID,
		"title":       strings.TrimSpace(item.Title),
		"company":     company,
		"url":         strings.TrimSpace(item.Link),
		"raw_text":    fmt.Sprintf("Title: %s\nSummary: %s", strings.TrimSpace(item.Title), CleanText(summary)),
	}
	if item.PublishedParsed != nil {
		payload["posted_at"] = item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	return payload
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
