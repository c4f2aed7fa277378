// Package ingestion discovers job postings from URLs, JSON exports and RSS feeds and stores them
// as DISCOVERED jobs with a job_discovered audit event each.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/formcatalog"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/ratelimit"
	"github.com/jonathan/apply-autopilot/internal/types"
)

var (
	// ErrRateLimited is returned when an actor exceeds the ingestion rate limit.
	ErrRateLimited = errors.New("ingestion rate limit exceeded")
	// ErrFetchFailed is returned when a posting cannot be downloaded.
	ErrFetchFailed = errors.New("posting fetch failed")
)

// Default source names.
const (
	SourceManualURL  = "manual-url"
	SourceManualJSON = "manual-json"
)

// Renderer returns the browser-rendered HTML of a page.
type Renderer func(ctx context.Context, url string) (string, error)

// CatalogRefresher rebuilds a job's form catalog after it is discovered.
type CatalogRefresher interface {
	Refresh(ctx context.Context, job *types.JobPosting, actorID string) (*formcatalog.Summary, error)
}

// Options configures a Service. Zero values disable the optional collaborators.
type Options struct {
	Limiter ratelimit.Limiter
	Limit   int
	Window  time.Duration
	Fetch   *fetch.Options
	Render  Renderer
	Catalog CatalogRefresher
	Log     *logging.Logger
}

// Service stores discovered postings.
type Service struct {
	store db.Store
	opts  Options
	now   func() time.Time
}

// NewService returns a Service writing to store.
func NewService(store db.Store, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return &Service{store: store, opts: opts, now: time.Now}
}

// URLRequest asks for one posting to be fetched. Empty overrides are extracted from the page.
type URLRequest struct {
	URL        string
	SourceName string
	ExternalID string
	Title      string
	Company    string
	Location   string
	Questions  []string
}

// FromURL fetches a posting, stores it, and refreshes its form catalog when a refresher is
// configured. Catalog failures are audited, not returned.
func (s *Service) FromURL(ctx context.Context, actorID string, req URLRequest) ([]uuid.UUID, error) {
	if err := s.allow(ctx, "ingest:url:"+actorID); err != nil {
		return nil, err
	}
	page, err := s.fetchPage(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	page.ExternalID = req.ExternalID
	page.Title = req.Title
	page.Company = req.Company
	page.Location = req.Location
	page.Questions = req.Questions

	payload, err := BuildPayload(*page, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to extract posting: %w", err)
	}
	source := req.SourceName
	if source == "" {
		source = SourceManualURL
	}
	ids, err := s.importJobs(ctx, actorID, source, true, []map[string]any{payload})
	if err != nil {
		return nil, err
	}
	if s.opts.Catalog != nil {
		for _, id := range ids {
			s.refreshCatalog(ctx, actorID, id)
		}
	}
	return ids, nil
}

// fetchPage downloads url, falling back to a rendered copy when the static HTML carries too
// little text. Non-200 responses are kept: their status is recorded in the payload.
func (s *Service) fetchPage(ctx context.Context, url string) (*Page, error) {
	res, err := fetch.URL(ctx, url, s.opts.Fetch)
	if res == nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if err != nil {
		s.opts.Log.Warn("posting fetch returned an error status", "url", url, "status", res.StatusCode)
	}
	page := &Page{SourceURL: url, FinalURL: res.FinalURL, HTML: res.HTML, StatusCode: res.StatusCode}

	if s.opts.Render == nil {
		return page, nil
	}
	platform := fetch.DetectPlatform(url)
	text, _ := fetch.ExtractMainText(res.HTML, fetch.PlatformContentSelectors(platform), fetch.PlatformNoiseSelectors(platform)...)
	if !fetch.ShouldUseBrowser(text) {
		return page, nil
	}
	s.opts.Log.Debug("posting text too short, rendering in browser", "url", url, "chars", len(text))
	rendered, err := s.opts.Render(ctx, url)
	if err != nil {
		s.opts.Log.Warn("browser render failed, keeping static HTML", "url", url, "error", err)
		return page, nil
	}
	page.HTML = rendered
	page.Rendered = true
	return page, nil
}

func (s *Service) refreshCatalog(ctx context.Context, actorID string, id uuid.UUID) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		s.opts.Log.Warn("catalog refresh skipped", "job_id", id, "error", err)
		return
	}
	event := types.AuditEvent{
		ActorType:  types.ActorSystem,
		ActorID:    actorID,
		EntityType: types.EntityJob,
		EntityID:   id.String(),
	}
	summary, err := s.opts.Catalog.Refresh(ctx, job, actorID)
	if err != nil {
		s.opts.Log.Warn("form catalog refresh failed", "job_id", id, "error", err)
		event.Action = types.ActionCatalogFailed
		event.Payload = map[string]any{"error": err.Error()}
	} else {
		event.Action = types.ActionCatalogRefreshed
		event.Payload = map[string]any{
			"platform":        summary.Platform,
			"final_url":       summary.FinalURL,
			"catalog_count":   summary.CatalogCount,
			"raw_field_count": summary.RawFieldCount,
			"script_count":    summary.ScriptCount,
			"apply_clicked":   summary.ApplyClicked,
		}
	}
	if err := s.store.AppendAudit(ctx, event); err != nil {
		s.opts.Log.Warn("failed to audit catalog refresh", "job_id", id, "error", err)
	}
}

func (s *Service) allow(ctx context.Context, key string) error {
	if s.opts.Limiter == nil {
		return nil
	}
	ok, err := s.opts.Limiter.Allow(ctx, key, s.opts.Limit, s.opts.Window)
	if err != nil {
		return fmt.Errorf("rate limit check failed: %w", err)
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
