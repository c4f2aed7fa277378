package types

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionAttempt is an append-only record of one automation run for an application.
type SubmissionAttempt struct {
	ID            uuid.UUID      `json:"id"`
	ApplicationID uuid.UUID      `json:"application_id"`
	AttemptNo     int            `json:"attempt_no"`
	Status        string         `json:"status"`
	Payload       map[string]any `json:"payload,omitempty"`
	ResponseURL   string         `json:"response_url,omitempty"`
	BlockReason   string         `json:"block_reason,omitempty"`
	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
