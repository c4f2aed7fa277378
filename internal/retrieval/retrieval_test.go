package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/types"
)

func sampleProfile() *types.Profile {
	return &types.Profile{
		Summary: "Student engineer who enjoys distributed systems",
		Skills:  []string{"Go", "Postgres"},
		Experience: []types.Experience{
			{Company: "Acme", Title: "Backend Intern", Highlights: "Built a Go ingestion service", Bullets: []string{"Cut p99 latency"}},
		},
		Projects:  []types.Project{{Name: "Kiln", Description: "Ceramics kiln controller firmware"}},
		Education: []types.Education{{School: "State University", Degree: "BSc Computer Science", EndDate: "2027", Details: "GPA 3.8 / 4.0"}},
		AllowedClaims: []types.AllowedClaim{
			{Claim: "Reduced build times by 40%", Metric: "40%"},
			{Claim: "   "},
		},
	}
}

func TestChunkProfile(t *testing.T) {
	chunks := ChunkProfile(sampleProfile())

	keys := make([]string, len(chunks))
	for i, c := range chunks {
		keys[i] = c.Key
	}
	assert.Equal(t, []string{"summary", "skills", "experience_1", "project_1", "education_1", "claim_1"}, keys)
	assert.Equal(t, "Skills: Go, Postgres", chunks[1].Text)
	assert.Equal(t, "Backend Intern at Acme: Built a Go ingestion service Cut p99 latency", chunks[2].Text)
	assert.Equal(t, "experience[0]", chunks[2].SourceField)
	assert.Equal(t, "State University BSc Computer Science 2027 GPA 3.8 / 4.0 GPA 3.8/4.0", chunks[4].Text)
	assert.Equal(t, "allowed_claims[0]", chunks[5].SourceField)

	assert.Nil(t, ChunkProfile(nil))
	assert.Empty(t, ChunkProfile(&types.Profile{}))
}

func TestRetrieve_RanksAndTruncates(t *testing.T) {
	r := NewSimilarity(nil)
	got, err := r.Retrieve(context.Background(), sampleProfile(), "ceramics kiln controller firmware", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "project_1", got[0].ChunkKey)
	assert.Greater(t, got[0].Score, 0.5)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestRetrieve_DefaultTopKAndEmptyProfile(t *testing.T) {
	r := NewSimilarity(nil)
	got, err := r.Retrieve(context.Background(), sampleProfile(), "anything", 0)
	require.NoError(t, err)
	assert.Len(t, got, 6)

	got, err = r.Retrieve(context.Background(), &types.Profile{}, "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
