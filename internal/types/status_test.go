package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_IsValid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, JobStatus("ARCHIVED").IsValid())
	assert.False(t, JobStatus("").IsValid())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusSubmitted.IsTerminal())
	assert.True(t, StatusClosed.IsTerminal())
	assert.False(t, StatusReadyForReview.IsTerminal())
	assert.False(t, StatusDrafted.IsTerminal())
}

func TestParseJobStatus(t *testing.T) {
	s, ok := ParseJobStatus("SCORED")
	assert.True(t, ok)
	assert.Equal(t, StatusScored, s)

	_, ok = ParseJobStatus("scored")
	assert.False(t, ok)
}

func TestJobPosting_CompanyKey(t *testing.T) {
	tests := []struct {
		name string
		job  JobPosting
		want string
	}{
		{"column wins", JobPosting{Company: " Acme Corp ", RawPayload: map[string]any{"company": "Other"}}, "acme corp"},
		{"payload fallback", JobPosting{RawPayload: map[string]any{"company": "Globex"}}, "globex"},
		{"unknown", JobPosting{}, "unknown-company"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.job.CompanyKey())
		})
	}
}

func TestResolvedField_Sensitive(t *testing.T) {
	assert.True(t, (&ResolvedField{RuntimeValueEnv: "WORKDAY_PASSWORD"}).Sensitive())
	assert.True(t, (&ResolvedField{Metadata: map[string]any{"sensitive": true}}).Sensitive())
	assert.False(t, (&ResolvedField{Value: "x"}).Sensitive())
}
