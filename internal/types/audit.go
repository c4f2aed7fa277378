package types

import (
	"time"

	"github.com/google/uuid"
)

// Audit action names.
const (
	ActionScoutEntered          = "scout_node_entered"
	ActionJobParsed             = "job_parsed"
	ActionJobFiltered           = "job_filtered"
	ActionJobScored             = "job_scored"
	ActionDraftGenerated        = "draft_generated"
	ActionVerificationCompleted = "verification_completed"
	ActionAutoApproved          = "auto_approved"
	ActionAutoApprovalBlocked   = "auto_approval_blocked"
	ActionFormFetched           = "form_fetched"
	ActionFieldsCataloged       = "fields_cataloged"
	ActionSubmissionResult      = "submission_result"
	ActionSubmissionBlocked     = "submission_blocked"
	ActionPacketBuilt           = "packet_built"
	ActionTrackerUpdated        = "tracker_updated"
	ActionCompanyLimitSkipped   = "pipeline_job_skipped_company_limit"
	ActionJobDiscovered         = "job_discovered"
	ActionCatalogRefreshed      = "form_catalog_refreshed"
	ActionCatalogFailed         = "form_catalog_failed"
)

// Actor types recorded on audit events.
const (
	ActorAgent  = "agent"
	ActorUser   = "user"
	ActorSystem = "system"
)

// Entity types recorded on audit events.
const (
	EntityJob         = "job"
	EntityApplication = "application"
)

// AuditEvent is an immutable record of a state-changing action.
type AuditEvent struct {
	ID         uuid.UUID      `json:"id"`
	ActorType  string         `json:"actor_type"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
