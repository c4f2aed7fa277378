package drafting

import (
	"regexp"
	"strings"
	"time"

	"github.com/jonathan/apply-autopilot/internal/types"
)

var (
	seniorityClaim   = regexp.MustCompile(`(?i)\b(seasoned|staff-level|principal|veteran|i am a senior|as a senior|senior engineer)\b`)
	gpaParenthetical = regexp.MustCompile(`(?i)\([^)]*gpa[^)]*\)`)
	paragraphBreak   = regexp.MustCompile(`\n\s*\n`)
	preamble         = regexp.MustCompile(`(?i)^(?:here is[^:]*:\s*|certainly[,!:]?\s*)`)

	studentTone = []struct {
		re   *regexp.Regexp
		with string
	}{
		{regexp.MustCompile(`(?i)\bseasoned\b`), "motivated"},
		{regexp.MustCompile(`(?i)\bstaff-level\b`), "student-level"},
		{regexp.MustCompile(`(?i)\bprincipal\b`), "student"},
		{regexp.MustCompile(`(?i)\bveteran\b`), "student"},
		{regexp.MustCompile(`(?i)\bi am a senior\b`), "I am a student"},
		{regexp.MustCompile(`(?i)\bas a senior\b`), "as a student"},
		{regexp.MustCompile(`(?i)\bsenior engineer\b`), "engineering intern candidate"},
	}

	skipParagraphPrefixes = []string{"here is", "certainly", "of course", "sure", "generated draft",
		"dear ", "sincerely", "best regards", "kind regards", "regards"}
	placeholderParagraphs = map[string]bool{"[your name]": true, "your name": true, "[name]": true}
)

// studentIdentity introduces the candidate by degree, school, graduation and GPA.
func studentIdentity(p *types.Profile) string {
	if len(p.Education) == 0 {
		return "I am currently a student candidate focused on internship opportunities."
	}
	first := p.Education[0]
	school := strings.TrimSpace(first.School)
	degree := strings.Trim(strings.TrimSpace(gpaParenthetical.ReplaceAllString(first.Degree, "")), " ,")
	if strings.Contains(strings.ToLower(degree), "computer science") || len([]rune(degree)) > 60 {
		degree = "Computer Science"
	}

	var b strings.Builder
	switch {
	case degree != "" && school != "":
		b.WriteString("I am currently a " + degree + " student at " + school)
	case school != "":
		b.WriteString("I am currently a student at " + school)
	default:
		b.WriteString("I am currently a student candidate")
	}
	if y := strings.TrimSpace(first.EndDate); y != "" {
		b.WriteString(", with expected graduation " + y)
	}
	gpa := strings.TrimSpace(first.GPA)
	if gpa == "" {
		if m := gpaInText.FindStringSubmatch(first.Degree + " " + first.Details); m != nil {
			gpa = strings.ReplaceAll(m[1], " ", "")
		}
	}
	if gpa != "" {
		b.WriteString(" (GPA " + gpa + ")")
	}
	b.WriteString(".")
	return b.String()
}

func normalizeStudentTone(text string) string {
	for _, r := range studentTone {
		text = r.re.ReplaceAllString(text, r.with)
	}
	return collapse(text)
}

// letterBody keeps up to three usable paragraphs of generated text, dropping greetings,
// closings and assistant preambles.
func letterBody(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, para := range paragraphBreak.Split(raw, -1) {
		para = collapse(para)
		lower := strings.ToLower(para)
		if para == "" || placeholderParagraphs[lower] || hasAnyPrefix(lower, skipParagraphPrefixes) {
			continue
		}
		out = append(out, strings.TrimSpace(strings.TrimLeft(para, "- ")))
	}
	if len(out) > 0 {
		if len(out) > 3 {
			out = out[:3]
		}
		return out
	}
	if flat := preamble.ReplaceAllString(collapse(raw), ""); flat != "" {
		return []string{flat}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// fallbackBody writes three paragraphs from the strongest evidence lines.
func fallbackBody(company, role string, evidence []string, identity string) []string {
	var snippets []string
	for _, line := range evidence {
		if s := firstSentence(line); s != "" {
			snippets = append(snippets, s)
		}
		if len(snippets) == 6 {
			break
		}
	}
	var experience, project string
	for _, s := range snippets {
		lower := strings.ToLower(s)
		if experience == "" && strings.Contains(lower, " at ") {
			experience = s
		}
		if project == "" && strings.Contains(s, ":") && !strings.Contains(lower, " at ") && !strings.HasPrefix(lower, "skills:") {
			project = s
		}
	}
	selected := dedupeLines(append([]string{experience, project}, snippets...), 3)

	p1 := "I am applying for the " + role + " position at " + company + ". "
	if identity != "" {
		p1 += identity + " "
	}
	p1 += "My background centers on building reliable software, improving delivery quality, and shipping measurable outcomes."

	var p2 string
	if len(selected) > 0 {
		p2 = "Relevant experience includes " + strings.Join(selected, "; ") + ". " +
			"I focus on translating complex requirements into clear execution plans and dependable production results."
	} else {
		p2 = "I have built backend services from design through production operations, " +
			"with strong emphasis on maintainability, observability, and cross-functional delivery."
	}
	p3 := "I would value the opportunity to contribute to " + company + " and help accelerate outcomes in the " +
		role + " scope. Thank you for your consideration."
	return []string{p1, p2, p3}
}

// composeLetter frames the body with a header, salutation and signature.
func composeLetter(p *types.Profile, name, company, role string, body []string, today time.Time) string {
	lines := []string{name}
	if p.PersonalInfo.Email != "" {
		lines = append(lines, p.PersonalInfo.Email)
	}
	if links := candidateLinks(p); len(links) > 0 {
		if len(links) > 2 {
			links = links[:2]
		}
		lines = append(lines, strings.Join(links, " | "))
	}
	lines = append(lines, today.Format("January 2, 2006"))
	if len(body) > 3 {
		body = body[:3]
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nHiring Manager\n" + company + "\n\nRe: " + role + "\n\nDear Hiring Manager,\n\n")
	b.WriteString(strings.TrimSpace(strings.Join(body, "\n\n")))
	b.WriteString("\n\nSincerely,\n" + name)
	return b.String()
}

func candidateLinks(p *types.Profile) []string {
	var out []string
	for _, l := range []string{p.PersonalInfo.GitHub, p.PersonalInfo.LinkedIn} {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
