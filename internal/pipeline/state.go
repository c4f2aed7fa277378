package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/submission"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Manual decisions accepted by the approval gate.
const (
	DecisionAutoApprove = "AUTO_APPROVE"
	DecisionHold        = "HOLD"
)

// RunState is the per-invocation context bag. Anything that must outlive the run is written
// to the job or application by the node that produced it.
type RunState struct {
	RunID          uuid.UUID `json:"run_id"`
	JobID          uuid.UUID `json:"job_id"`
	ApplicationID  uuid.UUID `json:"application_id"`
	UserID         string    `json:"user_id"`
	ActorID        string    `json:"actor_id"`
	ManualDecision string    `json:"manual_decision"`
	AutoPacket     bool      `json:"auto_packet"`

	Status types.JobStatus `json:"status"`
	Errors []string        `json:"errors"`

	Structured     *types.StructuredJob      `json:"job_structured,omitempty"`
	Score          *float64                  `json:"score,omitempty"`
	ScoreBreakdown map[string]float64        `json:"score_breakdown,omitempty"`
	Evidence       []types.EvidenceChunk     `json:"retrieved_profile_chunks,omitempty"`
	Drafts         *types.Drafts             `json:"drafts,omitempty"`
	Claims         []types.Claim             `json:"claims_table,omitempty"`
	Report         *types.VerificationReport `json:"verification_report,omitempty"`
	Submission     *submission.Outcome       `json:"submission,omitempty"`
	Artifacts      map[string]string         `json:"artifacts,omitempty"`

	AllowPacketWithoutApproval bool `json:"allow_packet_without_approval"`

	// Visited lists the nodes in the order they ran.
	Visited []string `json:"visited"`
}

func (s *RunState) addError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

func (s *RunState) hasApplication() bool {
	return s.ApplicationID != uuid.Nil
}
