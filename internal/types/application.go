package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Application is the single application attempt tied to one job.
type Application struct {
	ID                 uuid.UUID           `json:"id"`
	UserID             string              `json:"user_id"`
	JobID              uuid.UUID           `json:"job_id"`
	Status             JobStatus           `json:"status"`
	VerificationPassed *bool               `json:"verification_passed,omitempty"`
	VerificationReport *VerificationReport `json:"verification_report,omitempty"`
	ClaimsTable        []Claim             `json:"claims_table,omitempty"`
	ApprovedBy         string              `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time          `json:"approved_at,omitempty"`
	RejectionReason    string              `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Verified reports whether the last verification passed.
func (a *Application) Verified() bool {
	return a.VerificationPassed != nil && *a.VerificationPassed
}

// VerificationReport is the verification collaborator's result.
type VerificationReport struct {
	Passed        bool            `json:"passed"`
	Reasons       []string        `json:"reasons"`
	Checks        map[string]bool `json:"checks,omitempty"`
	ClaimsChecked int             `json:"claims_checked"`
}

// NormalizeCompany lowercases and trims a company name, defaulting to "unknown-company".
func NormalizeCompany(company string) string {
	key := strings.ToLower(strings.TrimSpace(company))
	if key == "" {
		return "unknown-company"
	}
	return key
}
