package drafting

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	maxEvidenceLines = 8
	maxSentenceChars = 220
	maxKeySkills     = 12
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	gpaInText     = regexp.MustCompile(`(\d\.\d{1,2}\s*/\s*4(?:\.0+)?)`)
	sentenceBreak = regexp.MustCompile(`[.!?]\s`)
)

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// firstSentence returns the leading sentence of text, capped at maxSentenceChars runes.
func firstSentence(text string) string {
	s := strings.Trim(collapse(text), " -")
	if s == "" {
		return ""
	}
	if loc := sentenceBreak.FindStringIndex(s); loc != nil {
		s = s[:loc[0]+1]
	}
	if r := []rune(s); len(r) > maxSentenceChars {
		s = string(r[:maxSentenceChars])
	}
	return strings.TrimSpace(s)
}

// dedupeLines keeps the first sentence of each line, dropping case-insensitive repeats.
func dedupeLines(lines []string, max int) []string {
	var out []string
	seen := map[string]bool{}
	for _, line := range lines {
		s := firstSentence(line)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) >= max {
			break
		}
	}
	return out
}

// profileGPA is the first explicit GPA, or one written as "x.y / 4" in the details.
func profileGPA(p *types.Profile) string {
	if p.GeneralMeta.GPA != "" {
		return p.GeneralMeta.GPA
	}
	for _, ed := range p.Education {
		if g := strings.TrimSpace(ed.GPA); g != "" {
			return g
		}
		if m := gpaInText.FindStringSubmatch(ed.Degree + " " + ed.Details); m != nil {
			return strings.ReplaceAll(m[1], " ", "")
		}
	}
	return ""
}

func profileGraduation(p *types.Profile) string {
	if p.GeneralMeta.GraduationYear != "" {
		return p.GeneralMeta.GraduationYear
	}
	for _, ed := range p.Education {
		if y := strings.TrimSpace(ed.EndDate); y != "" {
			return y
		}
	}
	return ""
}

// contextLines summarizes the profile in a handful of one-sentence lines.
func contextLines(p *types.Profile) []string {
	var lines []string
	if p.Summary != "" {
		lines = append(lines, p.Summary)
	}
	for i, e := range p.Experience {
		if i == 4 {
			break
		}
		detail := e.Highlights
		if len(e.Bullets) > 0 {
			detail = e.Bullets[0]
		}
		detail = firstSentence(detail)
		switch {
		case e.Title != "" && e.Company != "" && detail != "":
			lines = append(lines, fmt.Sprintf("%s at %s: %s", e.Title, e.Company, detail))
		case detail != "":
			lines = append(lines, detail)
		}
	}
	for i, pr := range p.Projects {
		if i == 3 {
			break
		}
		detail := firstSentence(pr.Description)
		switch {
		case pr.Name != "" && detail != "":
			lines = append(lines, pr.Name+": "+detail)
		case detail != "":
			lines = append(lines, detail)
		}
	}
	for i, ed := range p.Education {
		if i == 2 {
			break
		}
		var parts []string
		for _, v := range []string{ed.Degree, ed.School} {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			continue
		}
		line := "Student Profile: " + strings.Join(parts, ", ")
		gpa := strings.TrimSpace(ed.GPA)
		if gpa == "" {
			if m := gpaInText.FindStringSubmatch(ed.Degree + " " + ed.Details); m != nil {
				gpa = strings.ReplaceAll(m[1], " ", "")
			}
		}
		if gpa != "" {
			line += ", GPA " + gpa
		}
		if ed.EndDate != "" {
			line += ", expected graduation " + ed.EndDate
		}
		lines = append(lines, line)
	}
	var skills []string
	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
		if len(skills) == maxKeySkills {
			break
		}
	}
	if len(skills) > 0 {
		lines = append(lines, "Skills: "+strings.Join(skills, ", "))
	}
	return dedupeLines(lines, maxEvidenceLines)
}

// evidenceLines puts retrieved passages ahead of the profile summary lines.
func evidenceLines(p *types.Profile, chunks []types.EvidenceChunk) []string {
	lines := make([]string, 0, len(chunks)+maxEvidenceLines)
	for _, c := range chunks {
		lines = append(lines, c.Text)
	}
	lines = append(lines, contextLines(p)...)
	return dedupeLines(lines, maxEvidenceLines)
}
