package formcatalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// ErrNoURL is returned when a job has no URL to fetch a form from.
var ErrNoURL = errors.New("job has no URL; cannot fetch form fields")

// Summary describes a stored catalog refresh.
type Summary struct {
	Platform      string `json:"platform"`
	FinalURL      string `json:"final_url"`
	CatalogCount  int    `json:"catalog_count"`
	RawFieldCount int    `json:"raw_field_count"`
	ScriptCount   int    `json:"script_count"`
	ApplyClicked  bool   `json:"apply_clicked"`
}

// Service fetches a job's form and replaces its stored catalog.
type Service struct {
	fetcher Fetcher
	store   db.Store
	log     *logging.Logger
}

// NewService returns a Service.
func NewService(fetcher Fetcher, store db.Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{fetcher: fetcher, store: store, log: log}
}

// Refresh rebuilds the catalog for job, updates its platform when detection disagrees and
// audits form_fetched and fields_cataloged.
func (s *Service) Refresh(ctx context.Context, job *types.JobPosting, actorID string) (*Summary, error) {
	if job.URL == "" {
		return nil, ErrNoURL
	}
	res, err := s.fetcher.Fetch(ctx, job.URL, job.Platform)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceFormFields(ctx, job.ID, res.Fields); err != nil {
		return nil, fmt.Errorf("failed to store form catalog: %w", err)
	}
	if res.Platform != "" && res.Platform != job.Platform {
		job.Platform = res.Platform
		if err := s.store.UpdateJob(ctx, job); err != nil {
			return nil, fmt.Errorf("failed to update job platform: %w", err)
		}
	}

	events := []types.AuditEvent{
		{
			Action: types.ActionFormFetched,
			Payload: map[string]any{
				"platform":        res.Platform,
				"final_url":       res.FinalURL,
				"raw_field_count": res.RawFieldCount,
				"script_count":    res.ScriptCount,
				"apply_clicked":   res.ApplyClicked,
				"apply_detail":    res.ApplyDetail,
			},
		},
		{
			Action:  types.ActionFieldsCataloged,
			Payload: map[string]any{"platform": res.Platform, "catalog_count": len(res.Fields)},
		},
	}
	for _, ev := range events {
		ev.ActorType = types.ActorAgent
		ev.ActorID = actorID
		ev.EntityType = types.EntityJob
		ev.EntityID = job.ID.String()
		if err := s.store.AppendAudit(ctx, ev); err != nil {
			return nil, fmt.Errorf("failed to audit %s: %w", ev.Action, err)
		}
	}

	s.log.Info("form catalog stored", "job_id", job.ID, "platform", res.Platform, "catalog", len(res.Fields))
	return &Summary{
		Platform:      res.Platform,
		FinalURL:      res.FinalURL,
		CatalogCount:  len(res.Fields),
		RawFieldCount: res.RawFieldCount,
		ScriptCount:   res.ScriptCount,
		ApplyClicked:  res.ApplyClicked,
	}, nil
}

// Ensure returns the stored catalog, refreshing it first when it is empty and the job has a URL.
func (s *Service) Ensure(ctx context.Context, job *types.JobPosting, actorID string) ([]types.FormField, error) {
	fields, err := s.store.ListFormFields(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 || job.URL == "" {
		return fields, nil
	}
	if _, err := s.Refresh(ctx, job, actorID); err != nil {
		return nil, err
	}
	return s.store.ListFormFields(ctx, job.ID)
}
