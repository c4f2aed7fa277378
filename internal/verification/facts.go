package verification

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/types"
)

var (
	// metricPattern matches money, comma-grouped numbers, "N+", percentages and multipliers.
	// RE2 has no lookaround, so digit boundaries are enforced in metrics().
	metricPattern      = regexp.MustCompile(`\$\d+(?:\.\d+)?[kKmM]?|\d{1,3}(?:,\d{3})+(?:\.\d+)?\+?%?|\d+\+%?|\d+%|\d+x`)
	yearPattern        = regexp.MustCompile(`^(?:19|20)\d{2}$`)
	yearInDate         = regexp.MustCompile(`(?:19|20)\d{2}`)
	yearsPhrasePattern = regexp.MustCompile(`(?i)\b\d+\+?\s+years\b`)
	employerPattern    = regexp.MustCompile(`\bat\s+([A-Z][A-Za-z0-9&.\- ]{1,40}?)(?:[,.;:\n]|$)`)
	titleMention       = regexp.MustCompile(`(?i)\bas\s+(?:(?:an|a)\s+)?([a-z][a-z/& -]{2,50})`)
	nonAlnum           = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace         = regexp.MustCompile(`\s+`)

	titleHints = []string{
		"engineer", "developer", "manager", "analyst", "intern", "lead", "scientist", "consultant",
		"designer", "coordinator", "specialist", "assistant", "architect", "director", "officer",
		"president", "founder",
	}
	titleHintPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(titleHints, "|") + `)\b`)
	titleHintWords   = hintMatchers(titleHints)
	genericTitles    = map[string]bool{
		"developer": true, "engineer": true, "analyst": true, "intern": true, "manager": true, "scientist": true,
	}
)

// facts is the profile ground truth the drafts are checked against.
type facts struct {
	employers    []string // normalized
	schools      map[string]bool
	titles       []string // lowercased
	years        map[string]bool
	metrics      map[string]bool
	allowedText  string
	allowedLower string
}

func collectFacts(p *types.Profile) *facts {
	f := &facts{schools: map[string]bool{}, years: map[string]bool{}, metrics: map[string]bool{}}
	for _, e := range p.Experience {
		if c := normalizeToken(e.Company); c != "" {
			f.employers = append(f.employers, c)
		}
		if t := strings.ToLower(strings.TrimSpace(e.Title)); t != "" {
			f.titles = append(f.titles, t)
		}
		for _, d := range []string{e.StartDate, e.EndDate} {
			for _, y := range yearInDate.FindAllString(d, -1) {
				f.years[y] = true
			}
		}
	}
	for _, ed := range p.Education {
		if s := normalizeToken(ed.School); s != "" {
			f.schools[s] = true
		}
	}
	var claims []string
	for _, c := range p.AllowedClaims {
		if t := strings.TrimSpace(c.Claim); t != "" {
			claims = append(claims, t)
		}
		if m := strings.TrimSpace(c.Metric); m != "" {
			f.metrics[m] = true
		}
	}
	f.allowedText = strings.Join(claims, " ")
	f.allowedLower = strings.ToLower(f.allowedText)
	return f
}

// metrics returns metric tokens that are not directly preceded or followed by a digit.
func metrics(text string) []string {
	var out []string
	for _, loc := range metricPattern.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && isDigit(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isDigit(text[loc[1]]) {
			continue
		}
		out = append(out, text[loc[0]:loc[1]])
	}
	return out
}

func (f *facts) checkMetrics(text string) []string {
	var reasons []string
	for _, m := range metrics(text) {
		norm := strings.Trim(m, " .,")
		if norm == "" {
			continue
		}
		if year := strings.TrimRight(norm, "+%"); yearPattern.MatchString(year) {
			if !f.years[year] {
				reasons = append(reasons, fmt.Sprintf("Date year '%s' not present in profile", year))
			}
			continue
		}
		if f.metrics[norm] || strings.Contains(f.allowedText, norm) {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("Metric '%s' not present in allowed claims", norm))
	}
	return reasons
}

// checkYearsPhrases rejects "N years" unless an allowed claim says the same.
func (f *facts) checkYearsPhrases(text string) []string {
	var reasons []string
	for _, m := range yearsPhrasePattern.FindAllString(text, -1) {
		if !strings.Contains(f.allowedLower, strings.ToLower(m)) {
			reasons = append(reasons, fmt.Sprintf("Banned phrase requires explicit profile evidence: '%s'", m))
		}
	}
	return reasons
}

// checkEmployers accepts "at X" when X is the target company, a profile employer or a school.
func (f *facts) checkEmployers(text string, job *types.StructuredJob) []string {
	target := ""
	if job != nil {
		target = normalizeToken(job.Company)
	}
	var reasons []string
	for _, m := range employerPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		tok := normalizeToken(name)
		if tok == "" {
			continue
		}
		if target != "" && hasTokenPrefix(tok, target) {
			continue
		}
		known := false
		for _, e := range f.employers {
			if hasTokenPrefix(tok, e) {
				known = true
				break
			}
		}
		if known || f.schools[tok] {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("Employer not found in profile experience: '%s'", name))
	}
	return reasons
}

// checkTitles flags "as a <title>" mentions that are neither the target role nor a profile title.
func (f *facts) checkTitles(text string, job *types.StructuredJob) []string {
	targetTitle := ""
	if job != nil {
		targetTitle = strings.ToLower(strings.TrimSpace(job.Title))
	}
	var targetHints []string
	for _, h := range titleHints {
		if titleHintWords[h].MatchString(targetTitle) {
			targetHints = append(targetHints, h)
		}
	}

	var reasons []string
	for _, m := range titleMention.FindAllStringSubmatch(text, -1) {
		mention := strings.Trim(whitespace.ReplaceAllString(m[1], " "), " .,-")
		lower := strings.ToLower(mention)
		switch {
		case mention == "",
			strings.Contains(lower, "role"),
			!titleHintPattern.MatchString(mention),
			strings.Contains(lower, "candidate"),
			strings.Contains(lower, " at "),
			genericTitles[lower],
			targetTitle != "" && strings.Contains(lower, targetTitle),
			containsAny(lower, targetHints):
			continue
		}
		if containsAny(lower, f.titles) {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("Title not found in profile experience: '%s'", mention))
	}
	return reasons
}

func hintMatchers(hints []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(hints))
	for _, h := range hints {
		out[h] = regexp.MustCompile(`\b` + h + `\b`)
	}
	return out
}

func normalizeToken(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func hasTokenPrefix(tok, prefix string) bool {
	return tok == prefix || strings.HasPrefix(tok, prefix+" ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
