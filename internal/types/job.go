// Package types provides the data model shared by the pipeline, the form automation engine
// and the persistence layer.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// JobPosting is a discovered job and everything the pipeline learns about it.
type JobPosting struct {
	ID                uuid.UUID          `json:"id"`
	SourceName        string             `json:"source_name"`
	AutomationAllowed bool               `json:"automation_allowed"`
	ExternalID        string             `json:"external_id"`
	URL               string             `json:"url,omitempty"`
	RawText           string             `json:"raw_text"`
	RawPayload        map[string]any     `json:"raw_payload,omitempty"`
	Title             string             `json:"title,omitempty"`
	Company           string             `json:"company,omitempty"`
	Location          string             `json:"location,omitempty"`
	Seniority         string             `json:"seniority,omitempty"`
	Platform          string             `json:"platform,omitempty"`
	PostedAt          *time.Time         `json:"posted_at,omitempty"`
	Structured        *StructuredJob     `json:"structured,omitempty"`
	Drafts            *Drafts            `json:"drafts,omitempty"`
	Status            JobStatus          `json:"status"`
	Score             *float64           `json:"score,omitempty"`
	ScoreBreakdown    map[string]float64 `json:"score_breakdown,omitempty"`
	CloseReason       string             `json:"close_reason,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// CompanyKey is the normalized company name used for per-company caps.
func (j *JobPosting) CompanyKey() string {
	company := j.Company
	if company == "" && j.RawPayload != nil {
		if v, ok := j.RawPayload["company"].(string); ok {
			company = v
		}
	}
	return NormalizeCompany(company)
}

// StructuredJob is the output of the parsing collaborator.
type StructuredJob struct {
	Title                 string     `json:"title,omitempty"`
	Company               string     `json:"company,omitempty"`
	Location              string     `json:"location,omitempty"`
	Seniority             string     `json:"seniority,omitempty"`
	Requirements          []string   `json:"requirements,omitempty"`
	MustHave              []string   `json:"must_have,omitempty"`
	RequiresCoverLetter   bool       `json:"requires_cover_letter"`
	RequiresTranscript    bool       `json:"requires_transcript"`
	ApplicationQuestions  []string   `json:"application_questions,omitempty"`
	PostingActive         bool       `json:"posting_active"`
	PostingInactiveReason string     `json:"posting_inactive_reason,omitempty"`
	PostedAt              *time.Time `json:"posted_at,omitempty"`
	NormalizedAt          time.Time  `json:"normalized_at"`
}

// JobCreateInput holds the fields needed to ingest a new job.
type JobCreateInput struct {
	SourceName        string
	AutomationAllowed bool
	ExternalID        string
	URL               string
	RawText           string
	RawPayload        map[string]any
	Title             string
	Company           string
	Location          string
	Platform          string
	PostedAt          *time.Time
}
