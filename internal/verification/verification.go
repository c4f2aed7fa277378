// Package verification checks drafted application materials against the user's profile so
// that nothing reaches a form that the profile cannot back up.
package verification

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// Check keys reported in VerificationReport.Checks.
const (
	CheckClaimsHaveSources = "claims_have_sources"
	CheckMetricsGrounded   = "metrics_grounded"
	CheckBannedYears       = "banned_years_blocked"
	CheckEmployersGrounded = "employers_grounded"
)

// Verifier is the verification capability consumed by the verifier node.
type Verifier interface {
	Verify(profile *types.Profile, drafts *types.Drafts, claims []types.Claim, job *types.StructuredJob) *types.VerificationReport
}

// Grounding is the rule-based Verifier. Every metric, employer, title and years-of-experience
// phrase in the drafts must trace back to the profile.
type Grounding struct{}

// NewGrounding returns the rule-based verifier.
func NewGrounding() *Grounding { return &Grounding{} }

// Verify returns a report whose Reasons are deduplicated in first-seen order.
func (g *Grounding) Verify(profile *types.Profile, drafts *types.Drafts, claims []types.Claim, job *types.StructuredJob) *types.VerificationReport {
	if profile == nil {
		profile = &types.Profile{}
	}
	if drafts == nil {
		drafts = &types.Drafts{}
	}
	f := collectFacts(profile)
	text := combinedText(drafts)

	var reasons []string
	claimsSourced := true
	for _, c := range claims {
		if strings.TrimSpace(c.SourceField) == "" {
			claimsSourced = false
			reasons = append(reasons, "Claim missing source_field: "+truncate(c.Claim, 80))
		}
	}

	reasons = append(reasons, f.checkMetrics(text)...)
	reasons = append(reasons, f.checkYearsPhrases(text)...)
	reasons = append(reasons, f.checkEmployers(text, job)...)
	reasons = append(reasons, f.checkTitles(text, job)...)
	if profile.InternshipPreferences.TargetInternshipsOnly {
		reasons = append(reasons, checkSeniority(text)...)
	}
	reasons = dedupe(reasons)

	return &types.VerificationReport{
		Passed:  len(reasons) == 0,
		Reasons: reasons,
		Checks: map[string]bool{
			CheckClaimsHaveSources: claimsSourced,
			CheckMetricsGrounded:   !anyContains(reasons, "Metric"),
			CheckBannedYears:       !anyContains(reasons, "Banned phrase"),
			CheckEmployersGrounded: !anyContains(reasons, "Employer"),
		},
		ClaimsChecked: len(claims),
	}
}

func combinedText(d *types.Drafts) string {
	answers := make([]string, 0, len(d.ShortAnswers))
	for _, a := range d.ShortAnswers {
		answers = append(answers, a)
	}
	// map order does not matter: every check scans the whole text and reasons are deduplicated
	return strings.Join([]string{
		d.ResumeSummary,
		d.CoverLetter,
		strings.Join(d.BulletOrdering, "\n"),
		strings.Join(answers, "\n"),
	}, "\n")
}

var (
	seniorityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi am (?:a|an)\s+senior\b`),
		regexp.MustCompile(`(?i)\bas (?:a|an)\s+senior\b`),
		regexp.MustCompile(`(?i)\bseasoned\b`),
		regexp.MustCompile(`(?i)\bstaff[-\s]?level\b`),
		regexp.MustCompile(`(?i)\bprincipal\b`),
	}
	subjectLine = regexp.MustCompile(`(?m)^Re:\s*.*$`)
)

// checkSeniority blocks self-positioning above intern level. The letter's "Re:" subject line
// names the posting, not the candidate, so it is ignored.
func checkSeniority(text string) []string {
	body := subjectLine.ReplaceAllString(text, "")
	var reasons []string
	for _, re := range seniorityPatterns {
		if m := re.FindString(body); m != "" {
			reasons = append(reasons, fmt.Sprintf("Internship tone violation: self-seniority phrase '%s' is not allowed", m))
		}
	}
	return reasons
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func anyContains(reasons []string, sub string) bool {
	for _, r := range reasons {
		if strings.Contains(r, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
