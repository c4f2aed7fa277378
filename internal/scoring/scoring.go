// Package scoring computes how well a structured posting fits the user's profile.
package scoring

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// Breakdown keys.
const (
	KeyKeywordSkillMatch    = "keyword_skill_match"
	KeySemanticSimilarity   = "semantic_similarity"
	KeyMustHaveSatisfaction = "must_have_satisfaction"
	KeySeniorityLocationFit = "seniority_location_fit"
	KeyRecency              = "recency_score"
	KeyInternshipRoleFit    = "internship_role_fit"
	KeyRoleFamilyMatch      = "role_family_match"
	KeyLocationMatch        = "location_match"
	KeySeniorityMatch       = "seniority_match"
	KeyTotal                = "total"
)

// Weights of the components that make up the total.
const (
	keywordWeight  = 0.30
	semanticWeight = 0.30
	mustHaveWeight = 0.15
	fitWeight      = 0.15
	recencyWeight  = 0.10
)

// recencyHorizon is the posting age at which the recency score reaches zero.
const recencyHorizon = 30 * 24 * time.Hour

// Scorer is the scoring capability consumed by the pipeline.
type Scorer interface {
	Score(ctx context.Context, profile *types.Profile, job *types.StructuredJob, rawText string) (float64, map[string]float64, error)
}

// FitScorer blends keyword overlap, embedding similarity, must-have coverage, targeting
// preferences and recency into a score in [0,1].
type FitScorer struct {
	embedder Embedder
	now      func() time.Time
}

// NewFitScorer builds a FitScorer. A nil embedder means the hash embedding.
func NewFitScorer(embedder Embedder) *FitScorer {
	if embedder == nil {
		embedder = NewHashEmbedder(DefaultDim)
	}
	return &FitScorer{embedder: embedder, now: time.Now}
}

var (
	internshipTerms = termMatcher("intern", "internship", "co-op", "co op", "coop", "new grad", "student")
	techRoleHints   = termMatcher("software", "developer", "engineer", "backend", "frontend", "full stack",
		"full-stack", "api", "data", "machine learning", "ml", "ai", "analytics", "platform", "devops", "cloud")

	roleFamilies = map[string]*regexp.Regexp{
		"data":     termMatcher("data", "analytics", "sql", "etl", "warehouse", "pipeline", "bi"),
		"ml":       termMatcher("machine learning", "ml", "model", "nlp", "computer vision", "llm", "ai"),
		"backend":  termMatcher("backend", "api", "fastapi", "django", "flask", "microservice"),
		"software": termMatcher("software", "engineer", "developer", "swe"),
	}

	usTokens     = termMatcher("us", "usa", "united states")
	canadaTokens = termMatcher("ca", "canada")
)

// termMatcher matches any of terms as whole words.
func termMatcher(terms ...string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Score returns the weighted total and every sub-score.
func (s *FitScorer) Score(ctx context.Context, profile *types.Profile, job *types.StructuredJob, rawText string) (float64, map[string]float64, error) {
	if profile == nil {
		profile = &types.Profile{}
	}
	if job == nil {
		job = &types.StructuredJob{}
	}

	skills := make(map[string]bool, len(profile.Skills))
	for _, sk := range profile.Skills {
		skills[strings.ToLower(strings.TrimSpace(sk))] = true
	}
	profileText := profileSummary(profile)

	vecs, err := s.embedder.Embed(ctx, []string{rawText, profileText})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to embed posting and profile: %w", err)
	}
	semantic := clamp((Cosine(vecs[0], vecs[1]) + 1.0) / 2.0)

	internshipOnly := profile.InternshipPreferences.TargetInternshipsOnly
	jobText := strings.ToLower(strings.Join(nonEmpty(job.Title, job.Seniority, job.Location,
		strings.Join(job.Requirements, " "), rawText), " "))

	seniority := seniorityMatch(strings.ToLower(job.Seniority), preferredSeniority(profile, internshipOnly))
	location := locationMatch(strings.ToLower(job.Location), preferredLocations(profile))
	internship := internshipRoleFit(jobText, internshipOnly)
	family := roleFamilyMatch(profile.InternshipPreferences, jobText)

	breakdown := map[string]float64{
		KeyKeywordSkillMatch:    clamp(keywordSkillMatch(job.Requirements, skills)),
		KeySemanticSimilarity:   semantic,
		KeyMustHaveSatisfaction: clamp(mustHaveSatisfaction(job.MustHave, skills, strings.ToLower(profileText))),
		KeySeniorityLocationFit: clamp((seniority + location + internship + family) / 4.0),
		KeyRecency:              clamp(s.recency(job.PostedAt)),
		KeyInternshipRoleFit:    clamp(internship),
		KeyRoleFamilyMatch:      clamp(family),
		KeyLocationMatch:        clamp(location),
		KeySeniorityMatch:       clamp(seniority),
	}
	total := keywordWeight*breakdown[KeyKeywordSkillMatch] +
		semanticWeight*breakdown[KeySemanticSimilarity] +
		mustHaveWeight*breakdown[KeyMustHaveSatisfaction] +
		fitWeight*breakdown[KeySeniorityLocationFit] +
		recencyWeight*breakdown[KeyRecency]
	total = math.Round(total*1e6) / 1e6
	breakdown[KeyTotal] = total
	return total, breakdown, nil
}

func profileSummary(p *types.Profile) string {
	highlights := make([]string, 0, len(p.Experience))
	for _, e := range p.Experience {
		highlights = append(highlights, e.Highlights)
	}
	return strings.Join([]string{p.Summary, strings.Join(p.Skills, " "), strings.Join(highlights, " ")}, " ")
}

// keywordSkillMatch is the share of requirement tokens longer than two characters that name a
// profile skill.
func keywordSkillMatch(requirements []string, skills map[string]bool) float64 {
	tokens := map[string]bool{}
	for _, req := range requirements {
		for _, tok := range strings.Fields(strings.ReplaceAll(strings.ToLower(req), ",", " ")) {
			if len(tok) > 2 {
				tokens[tok] = true
			}
		}
	}
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for tok := range tokens {
		if skills[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func mustHaveSatisfaction(mustHave []string, skills map[string]bool, profileText string) float64 {
	if len(mustHave) == 0 {
		return 1.0
	}
	hits := 0
	for _, item := range mustHave {
		item = strings.ToLower(item)
		if strings.Contains(profileText, item) {
			hits++
			continue
		}
		for sk := range skills {
			if sk != "" && strings.Contains(item, sk) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(mustHave))
}

func preferredSeniority(p *types.Profile, internshipOnly bool) []string {
	if out := lowerAll(p.PreferredSeniority); len(out) > 0 {
		return out
	}
	if internshipOnly {
		return []string{"intern", "co-op", "junior", "new grad"}
	}
	return []string{"mid", "senior", "staff"}
}

func preferredLocations(p *types.Profile) []string {
	if out := lowerAll(p.PreferredLocations); len(out) > 0 {
		return out
	}
	if out := lowerAll(p.InternshipPreferences.PreferredLocations); len(out) > 0 {
		return out
	}
	return []string{"remote", "us", "canada"}
}

func seniorityMatch(target string, preferred []string) float64 {
	if target == "" {
		return 1.0
	}
	for _, p := range preferred {
		if p == target {
			return 1.0
		}
	}
	return 0.4
}

func locationMatch(target string, preferred []string) float64 {
	if target == "" {
		return 0.7
	}
	wantUS, wantCanada := false, false
	for _, p := range preferred {
		if strings.Contains(target, "remote") && strings.Contains(p, "remote") {
			return 1.0
		}
		if strings.Contains(target, p) || strings.Contains(p, target) {
			return 1.0
		}
		wantUS = wantUS || usTokens.MatchString(p)
		wantCanada = wantCanada || canadaTokens.MatchString(p)
	}
	if wantUS && usTokens.MatchString(target) {
		return 1.0
	}
	if wantCanada && canadaTokens.MatchString(target) {
		return 1.0
	}
	return 0.35
}

func internshipRoleFit(jobText string, internshipOnly bool) float64 {
	if internshipTerms.MatchString(jobText) {
		return 1.0
	}
	if internshipOnly {
		return 0.1
	}
	return 0.7
}

func roleFamilyMatch(prefs types.InternshipPreferences, jobText string) float64 {
	families := lowerAll(prefs.TargetRoleFamilies)
	tech := techRoleHints.MatchString(jobText)
	switch {
	case len(families) == 0 && tech:
		return 1.0
	case len(families) == 0:
		return 0.6
	case prefs.AllTechRoles && tech:
		return 1.0
	case prefs.AllTechRoles:
		return 0.4
	}
	best := 0.0
	for _, f := range families {
		m, ok := roleFamilies[f]
		if !ok {
			m = termMatcher(f)
		}
		score := 0.2
		if m.MatchString(jobText) {
			score = 1.0
		}
		best = math.Max(best, score)
	}
	return best
}

func (s *FitScorer) recency(postedAt *time.Time) float64 {
	if postedAt == nil || postedAt.IsZero() {
		return 0.5
	}
	age := s.now().Sub(*postedAt)
	if age < 0 {
		age = 0
	}
	days := math.Floor(age.Hours() / 24)
	return 1.0 - days*24/recencyHorizon.Hours()
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
