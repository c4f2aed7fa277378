package ingestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postingHTML = `<html><head><title>Backend Intern</title>
<script type="application/ld+json">{"applicationQuestions": [{"question": "Why do you want to work at Acme?"}]}</script>
</head><body>
<h1>Backend Intern</h1>
<p>Build APIs.</p>
<p>A cover letter is required.</p>
<p>What excites you about distributed systems?</p>
<form><label for="q1">Are you authorized to work in the US?</label><input id="q1"></form>
</body></html>`

func TestBuildPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload, err := BuildPayload(Page{
		SourceURL:  "https://boards.greenhouse.io/acme/jobs/42",
		FinalURL:   "https://boards.greenhouse.io/acme/jobs/42?gh_src=x",
		HTML:       postingHTML,
		StatusCode: 200,
		Company:    "Acme",
		Questions:  []string{"Do you need sponsorship?", "  "},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/42", payload["external_id"])
	assert.Equal(t, "greenhouse", payload["platform"])
	assert.Equal(t, "Backend Intern", payload["title"])
	assert.Equal(t, "Acme", payload["company"])
	assert.Contains(t, payload["raw_text"], "Build APIs.")
	assert.NotContains(t, payload["raw_text"], "ld+json")
	assert.Equal(t, []string{
		"Do you need sponsorship?",
		"Why do you want to work at Acme?",
		"Are you authorized to work in the US?",
		"What excites you about distributed systems?",
	}, payload["application_questions"])
	assert.Equal(t, []string{"cover_letter"}, payload["required_documents"])

	meta, ok := payload["source_metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 200, meta["status_code"])
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/42?gh_src=x", meta["final_url"])
	assert.Equal(t, false, meta["rendered"])
	assert.Equal(t, "2026-03-01T12:00:00Z", meta["fetched_at"])
	assert.Len(t, meta["content_hash"], 64)
	assert.Equal(t, map[string]any{"provided": 1, "json_scripts": 1, "labels": 1, "text_lines": 2}, meta["question_sources"])
}

func TestBuildPayload_Overrides(t *testing.T) {
	payload, err := BuildPayload(Page{
		SourceURL:  "https://example.com/careers/7",
		HTML:       "<html><body><p>Short posting.</p></body></html>",
		ExternalID: "ext-7",
		Title:      "Data Intern",
		Location:   "Remote",
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "ext-7", payload["external_id"])
	assert.Equal(t, "Data Intern", payload["title"])
	assert.Equal(t, "Remote", payload["location"])
	assert.Equal(t, "generic", payload["platform"])
	assert.Empty(t, payload["application_questions"])
	meta := payload["source_metadata"].(map[string]any)
	assert.Equal(t, "https://example.com/careers/7", meta["final_url"])
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, computeHash("a"), computeHash("a"))
	assert.NotEqual(t, computeHash("a"), computeHash("b"))
}
