package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// AppendSubmissionAttempt stores an attempt, numbering it after the application's last one.
func (db *DB) AppendSubmissionAttempt(ctx context.Context, attempt *types.SubmissionAttempt) (*types.SubmissionAttempt, error) {
	payloadJSON, err := marshalNullable(attempt.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attempt payload: %w", err)
	}
	out := *attempt
	out.ID = uuid.New()

	err = db.withTx(ctx, func(tx pgx.Tx) error {
		// lock the parent row so concurrent appends number sequentially
		if _, err := tx.Exec(ctx, `SELECT 1 FROM applications WHERE id = $1 FOR UPDATE`, attempt.ApplicationID); err != nil {
			return fmt.Errorf("failed to lock application: %w", err)
		}
		return tx.QueryRow(ctx,
			`INSERT INTO submission_attempts (id, application_id, attempt_no, status, payload,
			                                  response_url, block_reason, submitted_at)
			 SELECT $1, $2, COALESCE(MAX(attempt_no), 0) + 1, $3, $4, $5, $6, $7
			 FROM submission_attempts WHERE application_id = $2
			 RETURNING attempt_no, created_at`,
			out.ID, out.ApplicationID, out.Status, payloadJSON, nullIfEmpty(out.ResponseURL),
			nullIfEmpty(out.BlockReason), out.SubmittedAt,
		).Scan(&out.AttemptNo, &out.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append submission attempt: %w", err)
	}
	return &out, nil
}

// ListSubmissionAttempts returns an application's attempts in order.
func (db *DB) ListSubmissionAttempts(ctx context.Context, applicationID uuid.UUID) ([]types.SubmissionAttempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, application_id, attempt_no, status, payload, response_url, block_reason,
		        submitted_at, created_at
		 FROM submission_attempts WHERE application_id = $1 ORDER BY attempt_no`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission attempts: %w", err)
	}
	defer rows.Close()

	var attempts []types.SubmissionAttempt
	for rows.Next() {
		var a types.SubmissionAttempt
		var payloadJSON []byte
		var responseURL, blockReason *string
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.AttemptNo, &a.Status, &payloadJSON,
			&responseURL, &blockReason, &a.SubmittedAt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission attempt: %w", err)
		}
		a.ResponseURL = deref(responseURL)
		a.BlockReason = deref(blockReason)
		if payloadJSON != nil {
			_ = json.Unmarshal(payloadJSON, &a.Payload)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
