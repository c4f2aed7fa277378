package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// AddArtifact records a packet file. Rebuilding a packet appends new rows; the latest row per
// type wins.
func (db *DB) AddArtifact(ctx context.Context, artifact *types.Artifact) (*types.Artifact, error) {
	out := *artifact
	out.ID = uuid.New()
	err := db.pool.QueryRow(ctx,
		`INSERT INTO application_artifacts (id, application_id, artifact_type, path, checksum_sha256, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		out.ID, out.ApplicationID, out.Type, out.Path, out.ChecksumSHA256, out.SizeBytes,
	).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add artifact: %w", err)
	}
	return &out, nil
}

// ListArtifacts returns an application's artifacts, oldest first.
func (db *DB) ListArtifacts(ctx context.Context, applicationID uuid.UUID) ([]types.Artifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, application_id, artifact_type, path, checksum_sha256, size_bytes, created_at
		 FROM application_artifacts WHERE application_id = $1 ORDER BY created_at, artifact_type`,
		applicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []types.Artifact
	for rows.Next() {
		var a types.Artifact
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.Type, &a.Path, &a.ChecksumSHA256, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
