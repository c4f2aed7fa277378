package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// FromJSON stores a list of job payloads under source. Each payload needs at least
// external_id, id or url to be addressable; title, company, location, url, platform,
// posted_at and raw_text are read when present and the whole payload is kept raw.
func (s *Service) FromJSON(ctx context.Context, actorID, source string, payloads []map[string]any) ([]uuid.UUID, error) {
	if err := s.allow(ctx, "ingest:json:"+actorID); err != nil {
		return nil, err
	}
	if source == "" {
		source = SourceManualJSON
	}
	return s.importJobs(ctx, actorID, source, true, payloads)
}

// FromJSONFile reads a JSON array of payloads from path. The file stem names the source.
func (s *Service) FromJSONFile(ctx context.Context, actorID, path string) ([]uuid.UUID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var payloads []map[string]any
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("%s must contain a JSON list of job objects: %w", path, err)
	}
	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s.FromJSON(ctx, actorID, source, payloads)
}

// importJobs creates a job per payload and audits each discovery. Jobs already known for
// (source, external_id) are returned unchanged.
func (s *Service) importJobs(ctx context.Context, actorID, source string, automationAllowed bool, payloads []map[string]any) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(payloads))
	for i, payload := range payloads {
		input, err := jobInput(source, automationAllowed, payload)
		if err != nil {
			return ids, fmt.Errorf("payload %d: %w", i, err)
		}
		job, err := s.store.CreateJob(ctx, input)
		if err != nil {
			return ids, fmt.Errorf("failed to store job %q: %w", input.ExternalID, err)
		}
		if err := s.store.AppendAudit(ctx, types.AuditEvent{
			ActorType:  types.ActorSystem,
			ActorID:    actorID,
			Action:     types.ActionJobDiscovered,
			EntityType: types.EntityJob,
			EntityID:   job.ID.String(),
			Payload:    map[string]any{"source": source},
		}); err != nil {
			return ids, fmt.Errorf("failed to audit job %s: %w", job.ID, err)
		}
		s.opts.Log.Info("job discovered", "job_id", job.ID, "source", source, "external_id", input.ExternalID)
		ids = append(ids, job.ID)
	}
	return ids, nil
}

func jobInput(source string, automationAllowed bool, payload map[string]any) (types.JobCreateInput, error) {
	externalID := firstString(payload, "external_id", "id", "url")
	if externalID == "" {
		return types.JobCreateInput{}, fmt.Errorf("missing external_id, id and url")
	}
	jobURL := stringValue(payload, "url")

	platform := strings.ToLower(stringValue(payload, "platform"))
	if platform == "" {
		if meta, ok := payload["source_metadata"].(map[string]any); ok {
			platform = strings.ToLower(stringValue(meta, "platform"))
		}
	}
	if platform == "" && jobURL != "" {
		platform = string(fetch.DetectPlatform(jobURL))
	}

	return types.JobCreateInput{
		SourceName:        source,
		AutomationAllowed: automationAllowed,
		ExternalID:        externalID,
		URL:               jobURL,
		RawText:           stringValue(payload, "raw_text"),
		RawPayload:        payload,
		Title:             stringValue(payload, "title"),
		Company:           stringValue(payload, "company"),
		Location:          stringValue(payload, "location"),
		Platform:          platform,
		PostedAt:          parseTime(stringValue(payload, "posted_at")),
	}, nil
}

var postedAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", time.RFC1123Z, time.RFC1123}

// parseTime accepts ISO timestamps (with or without zone) and RSS dates. Unparseable values are dropped.
func parseTime(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range postedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func stringValue(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := stringValue(m, key); v != "" {
			return v
		}
	}
	return ""
}
