package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-autopilot/internal/types"
)

const applicationColumns = `id, user_id, job_id, status, verification_passed, verification_report,
	claims_table, approved_by, approved_at, rejection_reason, created_at, updated_at`

// GetOrCreateApplication returns the job's application, creating it with the job's current
// status if absent. The job_id uniqueness constraint keeps this at one row per job.
func (db *DB) GetOrCreateApplication(ctx context.Context, userID string, jobID uuid.UUID) (*types.Application, error) {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO applications (id, user_id, job_id, status)
		 SELECT $1, $2, id, status FROM jobs WHERE id = $3
		 ON CONFLICT (job_id) DO NOTHING`,
		uuid.New(), userID, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return db.GetApplicationByJob(ctx, jobID)
}

// GetApplication retrieves an application by id.
func (db *DB) GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplicationRow(row)
}

// GetApplicationByJob retrieves the application for a job.
func (db *DB) GetApplicationByJob(ctx context.Context, jobID uuid.UUID) (*types.Application, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1`, jobID)
	return scanApplicationRow(row)
}

// UpdateApplication persists status, verification, claims and approval fields.
func (db *DB) UpdateApplication(ctx context.Context, app *types.Application) error {
	reportJSON, err := marshalNullable(app.VerificationReport)
	if err != nil {
		return fmt.Errorf("failed to marshal verification report: %w", err)
	}
	claimsJSON, err := marshalNullable(app.ClaimsTable)
	if err != nil {
		return fmt.Errorf("failed to marshal claims table: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE applications SET status = $2, verification_passed = $3, verification_report = $4,
		        claims_table = $5, approved_by = $6, approved_at = $7, rejection_reason = $8,
		        updated_at = NOW()
		 WHERE id = $1`,
		app.ID, string(app.Status), app.VerificationPassed, reportJSON, claimsJSON,
		nullIfEmpty(app.ApprovedBy), app.ApprovedAt, nullIfEmpty(app.RejectionReason),
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveApplications counts the user's non-CLOSED applications for a normalized company.
func (db *DB) CountActiveApplications(ctx context.Context, userID, companyKey string) (int, error) {
	return countActive(ctx, db.pool, userID, companyKey, uuid.Nil)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countActive(ctx context.Context, q querier, userID, companyKey string, excludeJob uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications a JOIN jobs j ON j.id = a.job_id
		 WHERE a.user_id = $1 AND a.status <> $2 AND `+companyKeySQL+` = $3 AND a.job_id <> $4`,
		userID, string(types.StatusClosed), companyKey, excludeJob,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return n, nil
}

// ReserveCompanySlot atomically checks the per-company cap and, if there is room, creates the
// job's application so concurrent drivers see it. An advisory lock scoped to the transaction
// serializes reservations for the same user and company across processes.
func (db *DB) ReserveCompanySlot(ctx context.Context, userID, companyKey string, jobID uuid.UUID, max int) (bool, error) {
	if max <= 0 {
		return true, nil
	}
	reserved := false
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"|"+companyKey); err != nil {
			return fmt.Errorf("failed to lock company slot: %w", err)
		}
		n, err := countActive(ctx, tx, userID, companyKey, jobID)
		if err != nil {
			return err
		}
		if n >= max {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO applications (id, user_id, job_id, status)
			 SELECT $1, $2, id, status FROM jobs WHERE id = $3
			 ON CONFLICT (job_id) DO NOTHING`,
			uuid.New(), userID, jobID,
		); err != nil {
			return fmt.Errorf("failed to reserve application: %w", err)
		}
		reserved = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return reserved, nil
}

func scanApplicationRow(row pgx.Row) (*types.Application, error) {
	var a types.Application
	var status string
	var reportJSON, claimsJSON []byte
	var approvedBy, rejection *string

	err := row.Scan(&a.ID, &a.UserID, &a.JobID, &status, &a.VerificationPassed, &reportJSON,
		&claimsJSON, &approvedBy, &a.ApprovedAt, &rejection, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	a.Status = types.JobStatus(status)
	a.ApprovedBy = deref(approvedBy)
	a.RejectionReason = deref(rejection)
	if reportJSON != nil {
		_ = json.Unmarshal(reportJSON, &a.VerificationReport)
	}
	if claimsJSON != nil {
		_ = json.Unmarshal(claimsJSON, &a.ClaimsTable)
	}
	return &a, nil
}
