// Package memdb is an in-memory db.Store used by tests and by dry runs without PostgreSQL.
package memdb

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Store keeps every entity in maps guarded by one mutex. Values are deep-copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu        sync.Mutex
	sources   map[string]bool
	jobs      map[uuid.UUID]*types.JobPosting
	jobKeys   map[string]uuid.UUID
	apps      map[uuid.UUID]*types.Application
	appsByJob map[uuid.UUID]uuid.UUID
	fields    map[uuid.UUID][]types.FormField
	attempts  map[uuid.UUID][]types.SubmissionAttempt
	artifacts map[uuid.UUID][]types.Artifact
	audit     []types.AuditEvent
	now       func() time.Time
}

var _ db.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		sources:   make(map[string]bool),
		jobs:      make(map[uuid.UUID]*types.JobPosting),
		jobKeys:   make(map[string]uuid.UUID),
		apps:      make(map[uuid.UUID]*types.Application),
		appsByJob: make(map[uuid.UUID]uuid.UUID),
		fields:    make(map[uuid.UUID][]types.FormField),
		attempts:  make(map[uuid.UUID][]types.SubmissionAttempt),
		artifacts: make(map[uuid.UUID][]types.Artifact),
		now:       time.Now,
	}
}

func clone[T any](v T) T {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// UpsertJobSource implements db.Store.
func (s *Store) UpsertJobSource(_ context.Context, name string, automationAllowed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = automationAllowed
	for _, j := range s.jobs {
		if j.SourceName == name {
			j.AutomationAllowed = automationAllowed
		}
	}
	return nil
}

// CreateJob implements db.Store.
func (s *Store) CreateJob(_ context.Context, input types.JobCreateInput) (*types.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[input.SourceName]; !ok {
		s.sources[input.SourceName] = input.AutomationAllowed
	}
	key := input.SourceName + "\x00" + input.ExternalID
	if id, ok := s.jobKeys[key]; ok {
		return clone(s.jobs[id]), nil
	}
	now := s.now()
	job := &types.JobPosting{
		ID:                uuid.New(),
		SourceName:        input.SourceName,
		AutomationAllowed: s.sources[input.SourceName],
		ExternalID:        input.ExternalID,
		URL:               input.URL,
		RawText:           input.RawText,
		RawPayload:        clone(input.RawPayload),
		Title:             input.Title,
		Company:           input.Company,
		Location:          input.Location,
		Platform:          input.Platform,
		PostedAt:          input.PostedAt,
		Status:            types.StatusDiscovered,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.jobs[job.ID] = job
	s.jobKeys[key] = job.ID
	return clone(job), nil
}

// GetJob implements db.Store.
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*types.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(j), nil
}

// UpdateJob implements db.Store.
func (s *Store) UpdateJob(_ context.Context, job *types.JobPosting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return db.ErrNotFound
	}
	updated := clone(job)
	updated.SourceName = existing.SourceName
	updated.ExternalID = existing.ExternalID
	updated.AutomationAllowed = s.sources[existing.SourceName]
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.jobs[job.ID] = updated
	return nil
}

// ListJobsByStatus implements db.Store, ordering by posted_at desc (nulls last) then created_at desc.
func (s *Store) ListJobsByStatus(_ context.Context, status types.JobStatus, limit int) ([]types.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.JobPosting
	for _, j := range s.jobs {
		if j.Status == status {
			out = append(out, *clone(j))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		pa, pb := out[a].PostedAt, out[b].PostedAt
		switch {
		case pa != nil && pb != nil && !pa.Equal(*pb):
			return pa.After(*pb)
		case pa != nil && pb == nil:
			return true
		case pa == nil && pb != nil:
			return false
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) createApplicationLocked(userID string, jobID uuid.UUID) (*types.Application, error) {
	if id, ok := s.appsByJob[jobID]; ok {
		return s.apps[id], nil
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, db.ErrNotFound
	}
	now := s.now()
	app := &types.Application{
		ID:        uuid.New(),
		UserID:    userID,
		JobID:     jobID,
		Status:    job.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.apps[app.ID] = app
	s.appsByJob[jobID] = app.ID
	return app, nil
}

// GetOrCreateApplication implements db.Store.
func (s *Store) GetOrCreateApplication(_ context.Context, userID string, jobID uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.createApplicationLocked(userID, jobID)
	if err != nil {
		return nil, err
	}
	return clone(app), nil
}

// GetApplication implements db.Store.
func (s *Store) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(app), nil
}

// GetApplicationByJob implements db.Store.
func (s *Store) GetApplicationByJob(_ context.Context, jobID uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.appsByJob[jobID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return clone(s.apps[id]), nil
}

// UpdateApplication implements db.Store.
func (s *Store) UpdateApplication(_ context.Context, app *types.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.apps[app.ID]
	if !ok {
		return db.ErrNotFound
	}
	updated := clone(app)
	updated.JobID = existing.JobID
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()
	s.apps[app.ID] = updated
	return nil
}

func (s *Store) countActiveLocked(userID, companyKey string, exclude uuid.UUID) int {
	n := 0
	for _, app := range s.apps {
		if app.UserID != userID || app.Status == types.StatusClosed || app.JobID == exclude {
			continue
		}
		if job, ok := s.jobs[app.JobID]; ok && job.CompanyKey() == companyKey {
			n++
		}
	}
	return n
}

// CountActiveApplications implements db.Store.
func (s *Store) CountActiveApplications(_ context.Context, userID, companyKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(userID, companyKey, uuid.Nil), nil
}

// ReserveCompanySlot implements db.Store.
func (s *Store) ReserveCompanySlot(_ context.Context, userID, companyKey string, jobID uuid.UUID, max int) (bool, error) {
	if max <= 0 {
		return true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countActiveLocked(userID, companyKey, jobID) >= max {
		return false, nil
	}
	if _, err := s.createApplicationLocked(userID, jobID); err != nil {
		return false, err
	}
	return true, nil
}

// ReplaceFormFields implements db.Store.
func (s *Store) ReplaceFormFields(_ context.Context, jobID uuid.UUID, fields []types.FormField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]types.FormField, len(fields))
	for i, f := range fields {
		f = clone(f)
		f.JobID = jobID
		f.CreatedAt = now
		out[i] = f
	}
	s.fields[jobID] = out
	return nil
}

// ListFormFields implements db.Store.
func (s *Store) ListFormFields(_ context.Context, jobID uuid.UUID) ([]types.FormField, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.fields[jobID]), nil
}

// AppendSubmissionAttempt implements db.Store.
func (s *Store) AppendSubmissionAttempt(_ context.Context, attempt *types.SubmissionAttempt) (*types.SubmissionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[attempt.ApplicationID]; !ok {
		return nil, db.ErrNotFound
	}
	out := clone(attempt)
	out.ID = uuid.New()
	out.AttemptNo = len(s.attempts[attempt.ApplicationID]) + 1
	out.CreatedAt = s.now()
	s.attempts[attempt.ApplicationID] = append(s.attempts[attempt.ApplicationID], *out)
	return clone(out), nil
}

// ListSubmissionAttempts implements db.Store.
func (s *Store) ListSubmissionAttempts(_ context.Context, applicationID uuid.UUID) ([]types.SubmissionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.attempts[applicationID]), nil
}

// AddArtifact implements db.Store.
func (s *Store) AddArtifact(_ context.Context, artifact *types.Artifact) (*types.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[artifact.ApplicationID]; !ok {
		return nil, db.ErrNotFound
	}
	out := clone(artifact)
	out.ID = uuid.New()
	out.CreatedAt = s.now()
	s.artifacts[artifact.ApplicationID] = append(s.artifacts[artifact.ApplicationID], *out)
	return clone(out), nil
}

// ListArtifacts implements db.Store.
func (s *Store) ListArtifacts(_ context.Context, applicationID uuid.UUID) ([]types.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.artifacts[applicationID]), nil
}

// AppendAudit implements db.Store.
func (s *Store) AppendAudit(_ context.Context, event types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event = clone(event)
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = s.now()
	s.audit = append(s.audit, event)
	return nil
}

// ListAuditEvents implements db.Store.
func (s *Store) ListAuditEvents(_ context.Context, entityType, entityID string) ([]types.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.AuditEvent
	for _, e := range s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, clone(e))
		}
	}
	return out, nil
}

// Actions returns every recorded audit action in order, across all entities.
func (s *Store) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.audit))
	for i, e := range s.audit {
		out[i] = e.Action
	}
	return out
}
