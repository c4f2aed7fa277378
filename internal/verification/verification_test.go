package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/types"
)

func northwindProfile() *types.Profile {
	return &types.Profile{
		Experience: []types.Experience{{
			Company:   "Northwind Labs",
			Title:     "Senior Software Engineer",
			StartDate: "2022-01",
			EndDate:   "2025-12",
		}},
		Education:     []types.Education{{School: "State University"}},
		AllowedClaims: []types.AllowedClaim{{Claim: "Reduced API latency by 35% at Northwind Labs.", Metric: "35%"}},
	}
}

func hasReason(r *types.VerificationReport, sub string) bool {
	return anyContains(r.Reasons, sub)
}

func TestVerify_BlocksUngroundedClaims(t *testing.T) {
	drafts := &types.Drafts{
		ResumeSummary:  "I delivered 55% growth at Fabrikam and have 12 years experience.",
		CoverLetter:    "I worked at Fabrikam and improved conversion by 55%.",
		BulletOrdering: []string{"Led migration"},
		ShortAnswers:   map[string]string{"why": "I have 12 years of experience."},
	}
	claims := []types.Claim{{Claim: "Worked at Fabrikam", Evidence: "x"}}

	r := NewGrounding().Verify(northwindProfile(), drafts, claims, nil)

	assert.False(t, r.Passed)
	assert.True(t, hasReason(r, "Claim missing source_field: Worked at Fabrikam"))
	assert.Contains(t, r.Reasons, "Metric '55%' not present in allowed claims")
	assert.Contains(t, r.Reasons, "Banned phrase requires explicit profile evidence: '12 years'")
	assert.True(t, hasReason(r, "Employer not found in profile experience: 'Fabrikam"))
	assert.False(t, r.Checks[CheckClaimsHaveSources])
	assert.False(t, r.Checks[CheckMetricsGrounded])
	assert.False(t, r.Checks[CheckBannedYears])
	assert.False(t, r.Checks[CheckEmployersGrounded])
	assert.Equal(t, 1, r.ClaimsChecked)

	// the same metric appears twice but is reported once
	n := 0
	for _, reason := range r.Reasons {
		if reason == "Metric '55%' not present in allowed claims" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestVerify_GroundedDraftsPass(t *testing.T) {
	drafts := &types.Drafts{
		ResumeSummary:  "Reduced API latency by 35% at Northwind Labs.",
		CoverLetter:    "I am applying for the Backend Intern position at Globex. I worked as a Senior Software Engineer.",
		BulletOrdering: []string{"Studied at State University."},
		ShortAnswers:   map[string]string{"why": "I want to grow at Globex Corp."},
	}
	claims := []types.Claim{{Claim: "Reduced API latency", SourceField: "allowed_claims[0]"}}
	job := &types.StructuredJob{Company: "Globex", Title: "Backend Intern"}

	r := NewGrounding().Verify(northwindProfile(), drafts, claims, job)

	assert.True(t, r.Passed, r.Reasons)
	assert.Empty(t, r.Reasons)
	for key, ok := range r.Checks {
		assert.True(t, ok, key)
	}
}

func TestVerify_InternshipSeniority(t *testing.T) {
	p := &types.Profile{
		Experience:            []types.Experience{{Company: "Northwind Labs", Title: "Software Engineer"}},
		InternshipPreferences: types.InternshipPreferences{TargetInternshipsOnly: true},
	}
	drafts := &types.Drafts{
		ResumeSummary: "I am a student applying for internship roles.",
		CoverLetter:   "As a seasoned engineer, I am a senior backend engineer ready for this role.",
		ShortAnswers:  map[string]string{"why": "I am excited for this internship."},
	}
	claims := []types.Claim{{Claim: "I am a senior backend engineer", SourceField: "summary"}}

	r := NewGrounding().Verify(p, drafts, claims, nil)

	assert.False(t, r.Passed)
	assert.Contains(t, r.Reasons, "Internship tone violation: self-seniority phrase 'seasoned' is not allowed")
	assert.Contains(t, r.Reasons, "Internship tone violation: self-seniority phrase 'I am a senior' is not allowed")
	assert.True(t, r.Checks[CheckClaimsHaveSources])

	p.InternshipPreferences.TargetInternshipsOnly = false
	r = NewGrounding().Verify(p, drafts, claims, nil)
	assert.False(t, hasReason(r, "Internship tone violation"))
}

func TestVerify_SubjectLineIgnoredForSeniority(t *testing.T) {
	p := &types.Profile{InternshipPreferences: types.InternshipPreferences{TargetInternshipsOnly: true}}
	drafts := &types.Drafts{CoverLetter: "Re: Principal Intern\n\nDear Hiring Manager,"}

	r := NewGrounding().Verify(p, drafts, nil, &types.StructuredJob{Title: "Principal Intern"})

	assert.True(t, r.Passed, r.Reasons)
}

func TestVerify_NilInputs(t *testing.T) {
	r := NewGrounding().Verify(nil, nil, nil, nil)
	require.NotNil(t, r)
	assert.True(t, r.Passed)
	assert.Equal(t, 0, r.ClaimsChecked)
}

func TestMetrics(t *testing.T) {
	got := metrics("cut 35% and 10x5, raised $3k, 2,500+ users")
	assert.Equal(t, []string{"35%", "$3k", "2,500+"}, got)
}

func TestCheckMetrics_Years(t *testing.T) {
	f := collectFacts(northwindProfile())
	assert.Equal(t, []string{"Date year '2031' not present in profile"}, f.checkMetrics("Targets for 2031+ shipped."))
	assert.Empty(t, f.checkMetrics("Active since 2025+ releases."))
}

func TestCheckTitles(t *testing.T) {
	f := collectFacts(northwindProfile())
	job := &types.StructuredJob{Title: "Backend Intern"}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"target title", "I joined as a backend intern.", nil},
		{"profile title", "I worked as a senior software engineer.", nil},
		{"no title word", "I work as a team player.", nil},
		{"role wording", "I thrived as an engineering role model.", nil},
		{"ungrounded", "I served as a data scientist.", []string{"Title not found in profile experience: 'data scientist'"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.checkTitles(tt.text, job))
		})
	}
}

func TestCheckEmployers(t *testing.T) {
	f := collectFacts(northwindProfile())
	job := &types.StructuredJob{Company: "Globex"}

	assert.Empty(t, f.checkEmployers("I led work at Northwind Labs Inc. I study at State University.", job))
	assert.Empty(t, f.checkEmployers("Excited to build at Globex Corp, today.", job))
	assert.Equal(t,
		[]string{"Employer not found in profile experience: 'Initech'"},
		f.checkEmployers("I interned at Initech; it was great.", job))
}
