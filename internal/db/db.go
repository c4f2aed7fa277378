// Package db provides PostgreSQL persistence for jobs, applications, form catalogs, submission
// attempts and the audit trail.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/apply-autopilot/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the pipeline, the batch driver and the CLI.
type Store interface {
	UpsertJobSource(ctx context.Context, name string, automationAllowed bool) error
	CreateJob(ctx context.Context, input types.JobCreateInput) (*types.JobPosting, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.JobPosting, error)
	UpdateJob(ctx context.Context, job *types.JobPosting) error
	ListJobsByStatus(ctx context.Context, status types.JobStatus, limit int) ([]types.JobPosting, error)

	GetOrCreateApplication(ctx context.Context, userID string, jobID uuid.UUID) (*types.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	GetApplicationByJob(ctx context.Context, jobID uuid.UUID) (*types.Application, error)
	UpdateApplication(ctx context.Context, app *types.Application) error
	CountActiveApplications(ctx context.Context, userID, companyKey string) (int, error)
	ReserveCompanySlot(ctx context.Context, userID, companyKey string, jobID uuid.UUID, max int) (bool, error)

	ReplaceFormFields(ctx context.Context, jobID uuid.UUID, fields []types.FormField) error
	ListFormFields(ctx context.Context, jobID uuid.UUID) ([]types.FormField, error)

	AppendSubmissionAttempt(ctx context.Context, attempt *types.SubmissionAttempt) (*types.SubmissionAttempt, error)
	ListSubmissionAttempts(ctx context.Context, applicationID uuid.UUID) ([]types.SubmissionAttempt, error)

	AddArtifact(ctx context.Context, artifact *types.Artifact) (*types.Artifact, error)
	ListArtifacts(ctx context.Context, applicationID uuid.UUID) ([]types.Artifact, error)

	AppendAudit(ctx context.Context, event types.AuditEvent) error
	ListAuditEvents(ctx context.Context, entityType, entityID string) ([]types.AuditEvent, error)
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var _ Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
