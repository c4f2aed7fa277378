package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/db/memdb"
	"github.com/jonathan/apply-autopilot/internal/formcatalog"
	"github.com/jonathan/apply-autopilot/internal/ratelimit"
	"github.com/jonathan/apply-autopilot/internal/types"
)

type stubCatalog struct {
	summary *formcatalog.Summary
	err     error
	jobs    []string
}

func (s *stubCatalog) Refresh(_ context.Context, job *types.JobPosting, _ string) (*formcatalog.Summary, error) {
	s.jobs = append(s.jobs, job.ExternalID)
	return s.summary, s.err
}

func postingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/42":
			_, _ = fmt.Fprint(w, postingHTML)
		case "/gone":
			w.WriteHeader(http.StatusGone)
			_, _ = fmt.Fprint(w, "<html><body><p>This posting has closed.</p></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFromURL(t *testing.T) {
	ctx := context.Background()
	srv := postingServer(t)
	store := memdb.New()
	catalog := &stubCatalog{summary: &formcatalog.Summary{Platform: "generic", CatalogCount: 3, ApplyClicked: true}}
	svc := NewService(store, Options{Catalog: catalog})

	ids, err := svc.FromURL(ctx, "user-1", URLRequest{URL: srv.URL + "/jobs/42", Company: "Acme"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	job, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, SourceManualURL, job.SourceName)
	assert.True(t, job.AutomationAllowed)
	assert.Equal(t, srv.URL+"/jobs/42", job.ExternalID)
	assert.Equal(t, "Backend Intern", job.Title)
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, "generic", job.Platform)
	assert.Equal(t, types.StatusDiscovered, job.Status)
	assert.Contains(t, job.RawText, "Build APIs.")
	assert.Equal(t, []string{srv.URL + "/jobs/42"}, catalog.jobs)

	events, err := store.ListAuditEvents(ctx, types.EntityJob, ids[0].String())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.ActionJobDiscovered, events[0].Action)
	assert.Equal(t, types.ActorSystem, events[0].ActorType)
	assert.Equal(t, SourceManualURL, events[0].Payload["source"])
	assert.Equal(t, types.ActionCatalogRefreshed, events[1].Action)
	assert.EqualValues(t, 3, events[1].Payload["catalog_count"])
}

func TestFromURL_CatalogFailureIsAudited(t *testing.T) {
	ctx := context.Background()
	srv := postingServer(t)
	store := memdb.New()
	svc := NewService(store, Options{Catalog: &stubCatalog{err: errors.New("browser unavailable")}})

	ids, err := svc.FromURL(ctx, "user-1", URLRequest{URL: srv.URL + "/jobs/42"})
	require.NoError(t, err)

	events, err := store.ListAuditEvents(ctx, types.EntityJob, ids[0].String())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, types.ActionCatalogFailed, events[1].Action)
	assert.Equal(t, "browser unavailable", events[1].Payload["error"])
}

func TestFromURL_KeepsErrorStatus(t *testing.T) {
	ctx := context.Background()
	srv := postingServer(t)
	store := memdb.New()

	ids, err := NewService(store, Options{}).FromURL(ctx, "user-1", URLRequest{URL: srv.URL + "/gone", ExternalID: "gone-1"})
	require.NoError(t, err)
	job, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "gone-1", job.ExternalID)
	meta := job.RawPayload["source_metadata"].(map[string]any)
	assert.EqualValues(t, http.StatusGone, meta["status_code"])
}

func TestFromURL_RendersThinPages(t *testing.T) {
	ctx := context.Background()
	srv := postingServer(t)
	store := memdb.New()
	var rendered []string
	render := func(_ context.Context, url string) (string, error) {
		rendered = append(rendered, url)
		return "<html><body><p>Rendered posting body.</p></body></html>", nil
	}

	ids, err := NewService(store, Options{Render: render}).FromURL(ctx, "user-1", URLRequest{URL: srv.URL + "/jobs/42"})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/jobs/42"}, rendered)

	job, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Rendered posting body.", job.RawText)
	meta := job.RawPayload["source_metadata"].(map[string]any)
	assert.Equal(t, true, meta["rendered"])
}

func TestFromURL_Errors(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()

	_, err := NewService(store, Options{}).FromURL(ctx, "user-1", URLRequest{URL: "not a url"})
	assert.ErrorIs(t, err, ErrFetchFailed)

	limiter := ratelimit.NewMemory(time.Minute)
	defer limiter.Stop()
	srv := postingServer(t)
	svc := NewService(store, Options{Limiter: limiter, Limit: 1, Window: time.Minute})
	_, err = svc.FromURL(ctx, "user-2", URLRequest{URL: srv.URL + "/jobs/42"})
	require.NoError(t, err)
	_, err = svc.FromURL(ctx, "user-2", URLRequest{URL: srv.URL + "/jobs/42"})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestFromJSON(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	svc := NewService(store, Options{})

	payloads := []map[string]any{
		{"id": float64(7), "title": "Platform Intern", "company": "Initech", "url": "https://initech.wd5.myworkdayjobs.com/job/7", "posted_at": "2026-01-02T03:04:05Z"},
		{"external_id": "b", "platform": "Lever", "raw_text": "Build things."},
	}
	ids, err := svc.FromJSON(ctx, "user-1", "", payloads)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "7", first.ExternalID)
	assert.Equal(t, SourceManualJSON, first.SourceName)
	assert.Equal(t, "workday", first.Platform)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), *first.PostedAt)

	second, err := store.GetJob(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "lever", second.Platform)
	assert.Equal(t, "Build things.", second.RawText)

	again, err := svc.FromJSON(ctx, "user-1", "", payloads[:1])
	require.NoError(t, err)
	assert.Equal(t, ids[:1], again, "re-import returns the existing job")

	_, err = svc.FromJSON(ctx, "user-1", "", []map[string]any{{"title": "No identity"}})
	assert.ErrorContains(t, err, "missing external_id")
}

func TestFromJSONFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "campus-export.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"external_id": "c-1", "title": "QA Intern"}]`), 0o600))

	store := memdb.New()
	ids, err := NewService(store, Options{}).FromJSONFile(ctx, "user-1", path)
	require.NoError(t, err)
	job, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "campus-export", job.SourceName)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"external_id": "x"}`), 0o600))
	_, err = NewService(store, Options{}).FromJSONFile(ctx, "user-1", bad)
	assert.ErrorContains(t, err, "JSON list")
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Jobs</title>
<item>
  <title>Data Intern</title>
  <link>https://jobs.example.com/1</link>
  <guid>job-1</guid>
  <author>Acme</author>
  <description>&lt;p&gt;Work on &lt;b&gt;data&lt;/b&gt;&lt;/p&gt;</description>
  <pubDate>Fri, 02 Jan 2026 15:04:05 +0000</pubDate>
</item>
<item>
  <title>Ops Intern</title>
  <link>https://jobs.example.com/2</link>
</item>
</channel></rss>`

func TestFromRSS(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	store := memdb.New()
	ids, err := NewService(store, Options{}).FromRSS(ctx, "scheduler", RSSRequest{Source: "example-feed", FeedURL: srv.URL, AutomationAllowed: false})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, err := store.GetJob(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "job-1", first.ExternalID)
	assert.Equal(t, "Acme", first.Company)
	assert.False(t, first.AutomationAllowed)
	assert.Equal(t, "Title: Data Intern\nSummary: Work on data", first.RawText)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), *first.PostedAt)

	second, err := store.GetJob(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "https://jobs.example.com/2", second.ExternalID)

	_, err = NewService(store, Options{}).FromRSS(ctx, "scheduler", RSSRequest{Source: "x"})
	assert.Error(t, err)
}
