package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-autopilot/internal/types"
)

const jobColumns = `j.id, j.source_name, s.automation_allowed, j.external_id, j.url, j.raw_text,
	j.raw_payload, j.title, j.company, j.location, j.seniority, j.platform, j.posted_at,
	j.structured, j.drafts, j.status, j.score, j.score_breakdown, j.close_reason,
	j.created_at, j.updated_at`

// UpsertJobSource registers a source and whether automated submission is allowed for it.
func (db *DB) UpsertJobSource(ctx context.Context, name string, automationAllowed bool) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_sources (name, automation_allowed) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET automation_allowed = $2`,
		name, automationAllowed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job source: %w", err)
	}
	return nil
}

// CreateJob inserts a DISCOVERED job, or returns the existing job for the same source and
// external id. The source row is created with automation allowed if it does not exist.
func (db *DB) CreateJob(ctx context.Context, input types.JobCreateInput) (*types.JobPosting, error) {
	payloadJSON, err := marshalNullable(input.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal raw payload: %w", err)
	}

	var id uuid.UUID
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_sources (name, automation_allowed) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			input.SourceName, input.AutomationAllowed,
		); err != nil {
			return fmt.Errorf("failed to ensure job source: %w", err)
		}
		return tx.QueryRow(ctx,
			`INSERT INTO jobs (id, source_name, external_id, url, raw_text, raw_payload, title,
			                   company, location, platform, posted_at, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (source_name, external_id) DO UPDATE SET updated_at = jobs.updated_at
			 RETURNING id`,
			uuid.New(), input.SourceName, input.ExternalID, nullIfEmpty(input.URL), input.RawText,
			payloadJSON, nullIfEmpty(input.Title), nullIfEmpty(input.Company),
			nullIfEmpty(input.Location), nullIfEmpty(input.Platform), input.PostedAt,
			string(types.StatusDiscovered),
		).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return db.GetJob(ctx, id)
}

// GetJob retrieves a job with its source's automation flag.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.JobPosting, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs j JOIN job_sources s ON s.name = j.source_name
		 WHERE j.id = $1`,
		id,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// UpdateJob persists the mutable job fields.
func (db *DB) UpdateJob(ctx context.Context, job *types.JobPosting) error {
	payloadJSON, err := marshalNullable(job.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal raw payload: %w", err)
	}
	structuredJSON, err := marshalNullable(job.Structured)
	if err != nil {
		return fmt.Errorf("failed to marshal structured job: %w", err)
	}
	draftsJSON, err := marshalNullable(job.Drafts)
	if err != nil {
		return fmt.Errorf("failed to marshal drafts: %w", err)
	}
	breakdownJSON, err := marshalNullable(job.ScoreBreakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal score breakdown: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE jobs SET raw_payload = $2, title = $3, company = $4, location = $5, seniority = $6,
		        platform = $7, posted_at = $8, structured = $9, drafts = $10, status = $11,
		        score = $12, score_breakdown = $13, close_reason = $14, updated_at = NOW()
		 WHERE id = $1`,
		job.ID, payloadJSON, nullIfEmpty(job.Title), nullIfEmpty(job.Company),
		nullIfEmpty(job.Location), nullIfEmpty(job.Seniority), nullIfEmpty(job.Platform),
		job.PostedAt, structuredJSON, draftsJSON, string(job.Status), job.Score, breakdownJSON,
		nullIfEmpty(job.CloseReason),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJobsByStatus returns up to limit jobs with the given status, newest postings first.
func (db *DB) ListJobsByStatus(ctx context.Context, status types.JobStatus, limit int) ([]types.JobPosting, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs j JOIN job_sources s ON s.name = j.source_name
		 WHERE j.status = $1
		 ORDER BY j.posted_at DESC NULLS LAST, j.created_at DESC
		 LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.JobPosting
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*types.JobPosting, error) {
	var j types.JobPosting
	var url, title, company, location, seniority, platform, closeReason *string
	var payloadJSON, structuredJSON, draftsJSON, breakdownJSON []byte
	var status string

	if err := row.Scan(&j.ID, &j.SourceName, &j.AutomationAllowed, &j.ExternalID, &url, &j.RawText,
		&payloadJSON, &title, &company, &location, &seniority, &platform, &j.PostedAt,
		&structuredJSON, &draftsJSON, &status, &j.Score, &breakdownJSON, &closeReason,
		&j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}

	j.URL = deref(url)
	j.Title = deref(title)
	j.Company = deref(company)
	j.Location = deref(location)
	j.Seniority = deref(seniority)
	j.Platform = deref(platform)
	j.CloseReason = deref(closeReason)
	j.Status = types.JobStatus(status)

	if payloadJSON != nil {
		_ = json.Unmarshal(payloadJSON, &j.RawPayload)
	}
	if structuredJSON != nil {
		_ = json.Unmarshal(structuredJSON, &j.Structured)
	}
	if draftsJSON != nil {
		_ = json.Unmarshal(draftsJSON, &j.Drafts)
	}
	if breakdownJSON != nil {
		_ = json.Unmarshal(breakdownJSON, &j.ScoreBreakdown)
	}
	return &j, nil
}

// marshalNullable encodes v as JSON, mapping nil values to SQL NULL.
func marshalNullable(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		if t == nil {
			return nil, nil
		}
	case map[string]float64:
		if t == nil {
			return nil, nil
		}
	case *types.StructuredJob:
		if t == nil {
			return nil, nil
		}
	case *types.Drafts:
		if t == nil {
			return nil, nil
		}
	case *types.VerificationReport:
		if t == nil {
			return nil, nil
		}
	case []types.Claim:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// companyKeySQL normalizes a job's company the same way types.NormalizeCompany does.
var companyKeySQL = strings.TrimSpace(`
	COALESCE(NULLIF(LOWER(TRIM(COALESCE(j.company, j.raw_payload->>'company', ''))), ''), 'unknown-company')`)
