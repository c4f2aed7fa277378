// Package retrieval selects the profile passages most relevant to a posting.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/scoring"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// DefaultTopK is the number of chunks returned when the caller asks for none.
const DefaultTopK = 8

// Chunk is one embeddable passage of the profile.
type Chunk struct {
	Key         string
	Text        string
	SourceField string
}

// Retriever is the evidence retrieval capability consumed by the writer node.
type Retriever interface {
	Retrieve(ctx context.Context, profile *types.Profile, jobText string, topK int) ([]types.EvidenceChunk, error)
}

// Similarity ranks profile chunks against the posting by cosine similarity of their embeddings.
type Similarity struct {
	embedder scoring.Embedder
}

// NewSimilarity builds a Similarity retriever. A nil embedder means the hash embedding.
func NewSimilarity(embedder scoring.Embedder) *Similarity {
	if embedder == nil {
		embedder = scoring.NewHashEmbedder(scoring.DefaultDim)
	}
	return &Similarity{embedder: embedder}
}

// Retrieve returns up to topK chunks, best first. Ties keep profile order.
func (s *Similarity) Retrieve(ctx context.Context, profile *types.Profile, jobText string, topK int) ([]types.EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	chunks := ChunkProfile(profile)
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, jobText)
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed profile chunks: %w", err)
	}

	scored := make([]types.EvidenceChunk, len(chunks))
	for i, c := range chunks {
		scored[i] = types.EvidenceChunk{
			ChunkKey:    c.Key,
			Text:        c.Text,
			SourceField: c.SourceField,
			Score:       scoring.Cosine(vecs[0], vecs[i+1]),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

var gpaInDetails = regexp.MustCompile(`(\d\.\d{1,2}\s*/\s*4(?:\.0+)?)`)

// ChunkProfile splits a profile into passages keyed by the field they come from.
func ChunkProfile(p *types.Profile) []Chunk {
	if p == nil {
		return nil
	}
	var out []Chunk
	add := func(key, text, field string) {
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, Chunk{Key: key, Text: text, SourceField: field})
		}
	}

	add("summary", p.Summary, "summary")
	if len(p.Skills) > 0 {
		add("skills", "Skills: "+strings.Join(p.Skills, ", "), "skills")
	}
	for i, e := range p.Experience {
		text := fmt.Sprintf("%s at %s: %s", e.Title, e.Company, e.Highlights)
		if len(e.Bullets) > 0 {
			text += " " + strings.Join(e.Bullets, " ")
		}
		add("experience_"+strconv.Itoa(i+1), text, fmt.Sprintf("experience[%d]", i))
	}
	for i, pr := range p.Projects {
		add("project_"+strconv.Itoa(i+1), pr.Name+": "+pr.Description, fmt.Sprintf("projects[%d]", i))
	}
	for i, ed := range p.Education {
		gpa := strings.TrimSpace(ed.GPA)
		if gpa == "" {
			if m := gpaInDetails.FindStringSubmatch(ed.Degree + " " + ed.Details); m != nil {
				gpa = strings.ReplaceAll(m[1], " ", "")
			}
		}
		text := strings.Join(strings.Fields(strings.Join([]string{ed.School, ed.Degree, ed.EndDate, ed.Details}, " ")), " ")
		if gpa != "" && text != "" {
			text += " GPA " + gpa
		}
		add("education_"+strconv.Itoa(i+1), text, fmt.Sprintf("education[%d]", i))
	}
	for i, c := range p.AllowedClaims {
		add("claim_"+strconv.Itoa(i+1), c.Claim, fmt.Sprintf("allowed_claims[%d]", i))
	}
	return out
}
