package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// ReplaceFormFields swaps a job's entire field catalog in one transaction.
func (db *DB) ReplaceFormFields(ctx context.Context, jobID uuid.UUID, fields []types.FormField) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM application_form_fields WHERE job_id = $1`, jobID); err != nil {
			return fmt.Errorf("failed to clear form fields: %w", err)
		}
		batch := &pgx.Batch{}
		for i, f := range fields {
			metaJSON, err := marshalNullable(f.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal field metadata: %w", err)
			}
			batch.Queue(
				`INSERT INTO application_form_fields (job_id, field_key, label, field_type, required,
				                                      platform, metadata, position)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				jobID, f.FieldKey, f.Label, f.FieldType, f.Required, f.Platform, metaJSON, i,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert form fields: %w", err)
		}
		return nil
	})
}

// ListFormFields returns the job's catalog in discovery order.
func (db *DB) ListFormFields(ctx context.Context, jobID uuid.UUID) ([]types.FormField, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT job_id, field_key, label, field_type, required, platform, metadata, created_at
		 FROM application_form_fields WHERE job_id = $1 ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list form fields: %w", err)
	}
	defer rows.Close()

	var fields []types.FormField
	for rows.Next() {
		var f types.FormField
		var metaJSON []byte
		if err := rows.Scan(&f.JobID, &f.FieldKey, &f.Label, &f.FieldType, &f.Required,
			&f.Platform, &metaJSON, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}
		if metaJSON != nil {
			_ = json.Unmarshal(metaJSON, &f.Metadata)
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
