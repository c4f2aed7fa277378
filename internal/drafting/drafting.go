// Package drafting writes the resume summary, cover letter and question answers for a job
// from profile evidence, and records which profile field backs each claim.
package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/apply-autopilot/internal/llm"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Provider names accepted by New.
const (
	ProviderTemplate = "template"
	ProviderGemini   = "gemini"
)

const (
	maxClaimChunks = 5
	maxBullets     = 5
	summaryLines   = 3
)

// Drafter is the drafting capability consumed by the writer node.
type Drafter interface {
	Draft(ctx context.Context, profile *types.Profile, job *types.StructuredJob, evidence []types.EvidenceChunk) (*types.Drafts, []types.Claim, error)
}

// Composer assembles drafts from evidence. With an LLM client it asks the model for the
// cover letter body and free-text answers; without one, or when the model fails, it writes
// them from templates.
type Composer struct {
	client llm.Client
	log    *logging.Logger
	now    func() time.Time
}

// NewComposer builds a Composer. client may be nil.
func NewComposer(client llm.Client, log *logging.Logger) *Composer {
	if log == nil {
		log = logging.Nop()
	}
	return &Composer{client: client, log: log.With("component", "drafting"), now: time.Now}
}

// New selects the drafting variant named in configuration.
func New(provider string, client llm.Client, log *logging.Logger) (Drafter, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderTemplate:
		return NewComposer(nil, log), nil
	case ProviderGemini:
		if client == nil {
			return nil, fmt.Errorf("drafting provider %q requires an llm client", provider)
		}
		return NewComposer(client, log), nil
	default:
		return nil, fmt.Errorf("unsupported drafting provider %q (supported: template, gemini)", provider)
	}
}

// Draft never fails on model errors; they fall back to template text.
func (c *Composer) Draft(ctx context.Context, profile *types.Profile, job *types.StructuredJob, evidence []types.EvidenceChunk) (*types.Drafts, []types.Claim, error) {
	if profile == nil {
		return nil, nil, fmt.Errorf("profile is required")
	}
	if job == nil {
		job = &types.StructuredJob{}
	}
	top := evidence
	if len(top) > maxClaimChunks {
		top = top[:maxClaimChunks]
	}

	name := strings.TrimSpace(profile.PersonalInfo.Name)
	if name == "" {
		name = "Candidate"
	}
	internship := profile.InternshipPreferences.TargetInternshipsOnly
	identity := ""
	if internship {
		identity = studentIdentity(profile)
	}
	lines := evidenceLines(profile, top)
	company := firstNonEmpty(job.Company, "Hiring Team")
	role := firstNonEmpty(job.Title, "this role")

	summary := []string{name + " is targeting " + firstNonEmpty(job.Title, "this role") + ".", "Relevant evidence:"}
	if identity != "" {
		summary = append(summary, "- "+identity)
	}
	for i, l := range lines {
		if i == summaryLines {
			break
		}
		summary = append(summary, "- "+l)
	}
	bullets := lines
	if len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}

	drafts := &types.Drafts{
		ResumeSummary:  strings.Join(summary, "\n"),
		BulletOrdering: append([]string(nil), bullets...),
		ShortAnswers:   map[string]string{},
	}
	if job.RequiresCoverLetter {
		drafts.CoverLetter = c.coverLetter(ctx, profile, name, company, role, lines, internship, identity)
	}
	c.answer(ctx, drafts, profile, job.ApplicationQuestions, company, role, lines, internship, identity)

	claims := make([]types.Claim, 0, len(top))
	for _, ch := range top {
		claims = append(claims, types.Claim{
			Claim:       ch.Text,
			SourceField: ch.SourceField,
			Evidence:    ch.ChunkKey,
			DraftField:  "bullet_ordering",
		})
	}
	return drafts, claims, nil
}

func (c *Composer) coverLetter(ctx context.Context, p *types.Profile, name, company, role string, lines []string, internship bool, identity string) string {
	var body []string
	if c.client != nil {
		prompt := llm.Prompt{
			Task: "Write exactly three polished business paragraphs for an internship cover letter body.",
			Constraints: []string{
				"Use only the evidence provided.",
				"Do not invent employers, titles, dates, or metrics.",
				"Position the candidate as a student/intern candidate; never as senior/staff/principal.",
				"Do not include greeting, closing, signature, placeholders, bullet lists, or markdown.",
				"Tone: concise, credible, and professional.",
			},
			Facts: []llm.Fact{
				{Label: "Candidate", Value: name},
				{Label: "Candidate student profile", Value: identity},
				{Label: "Target company", Value: company},
				{Label: "Target role", Value: role},
			},
			Evidence: lines,
		}
		raw, err := c.client.GenerateContent(ctx, prompt.String(), llm.TierStandard)
		if err != nil {
			c.log.Warn("cover letter generation failed, using template", "error", err)
		}
		body = letterBody(raw)
	}
	if internship && seniorityClaim.MatchString(strings.Join(body, "\n")) {
		body = nil
	}
	switch {
	case len(body) == 0:
		body = fallbackBody(company, role, lines, identity)
	case internship && identity != "":
		first := normalizeStudentTone(body[0])
		lower := strings.ToLower(first)
		if !strings.Contains(lower, "student") && !strings.Contains(lower, "intern") {
			first = identity + " " + first
		}
		body[0] = first
	}
	if internship {
		for i := range body {
			body[i] = normalizeStudentTone(body[i])
		}
	}
	return composeLetter(p, name, company, role, body, c.now())
}

// answer fills short answers and question pairs in question order. Profile facts answer
// first; the rest go to the model in one request, then to the template.
func (c *Composer) answer(ctx context.Context, d *types.Drafts, p *types.Profile, questions []string, company, role string, lines []string, internship bool, identity string) {
	var qs []string
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}
	if len(qs) == 0 {
		return
	}
	answers := make([]string, len(qs))
	var open []int
	for i, q := range qs {
		if a := profileAnswer(q, p); a != "" {
			answers[i] = a
			continue
		}
		open = append(open, i)
	}

	if c.client != nil && len(open) > 0 {
		generated := c.generateAnswers(ctx, qs, open, company, role, lines, internship, identity)
		for j, i := range open {
			if j < len(generated) {
				answers[i] = strings.TrimSpace(generated[j])
			}
		}
	}
	for i, q := range qs {
		if answers[i] == "" {
			answers[i] = fallbackAnswer(q, role, lines, internship, identity)
		}
		key := questionKey(q, i)
		d.ShortAnswers[key] = answers[i]
		d.QuestionAnswerPairs = append(d.QuestionAnswerPairs, types.QuestionAnswer{Question: q, Answer: answers[i]})
	}
}

func (c *Composer) generateAnswers(ctx context.Context, qs []string, open []int, company, role string, lines []string, internship bool, identity string) []string {
	tone := "Keep each answer professional and concise."
	if internship {
		tone = "Position the candidate as a student/intern candidate."
	}
	facts := []llm.Fact{{Label: "Role", Value: role}, {Label: "Company", Value: company}, {Label: "Student profile", Value: identity}}
	for n, i := range open {
		facts = append(facts, llm.Fact{Label: fmt.Sprintf("Question %d", n+1), Value: qs[i]})
	}
	prompt := llm.Prompt{
		Task: "Answer each application question in 3-5 concise sentences.",
		Constraints: []string{
			"Use only the provided evidence.",
			"Do not invent employers, titles, dates, metrics, or technologies.",
			tone,
			"Avoid fluff and generic claims.",
		},
		Facts:     facts,
		Evidence:  lines,
		JSONShape: `{"answers": ["answer to question 1", "..."]}`,
	}
	raw, err := c.client.GenerateJSON(ctx, prompt.String(), llm.TierStandard)
	if err != nil {
		c.log.Warn("answer generation failed, using template", "error", err)
		return nil
	}
	var out struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.log.Warn("answer generation returned invalid JSON, using template", "error", err)
		return nil
	}
	return out.Answers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
