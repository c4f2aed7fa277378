package formfill

import (
	"regexp"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/parsing"
	"github.com/jonathan/apply-autopilot/internal/types"
)

var (
	mentionsUS     = regexp.MustCompile(`\b(us|u\.s\.?|usa)\b|united states`)
	mentionsCanada = regexp.MustCompile(`\bcanad(a|ian)\b`)
	mentionsSchool = regexp.MustCompile(`\b(university|school|college)\b`)
)

// norm lowercases and collapses whitespace.
func norm(s string) string {
	return strings.ToLower(parsing.CollapseSpace(s))
}

// workAuthAnswer answers authorization and sponsorship questions for the US and Canada.
func workAuthAnswer(prompt string, auth types.WorkAuthorization) string {
	q := norm(prompt)
	us := mentionsUS.MatchString(q)
	canada := mentionsCanada.MatchString(q)

	if strings.Contains(q, "authorized") && strings.Contains(q, "work") {
		switch {
		case canada:
			if !auth.CanadaAuthorized {
				return "No, I am not currently authorized to work in Canada."
			}
			if auth.RequiresSponsorshipCanada {
				return "Yes, I am authorized to work in Canada and may require sponsorship."
			}
			return "Yes, I am authorized to work in Canada and do not require sponsorship."
		case us:
			if !auth.USAuthorized {
				return "No, I am not currently authorized to work in the United States."
			}
			if auth.RequiresSponsorshipUS {
				return "Yes, I am authorized to work in the United States and may require sponsorship."
			}
			return "Yes, I am authorized to work in the United States and do not require sponsorship."
		}
	}

	if strings.Contains(q, "sponsor") || strings.Contains(q, "visa") {
		switch {
		case canada:
			return yesNo(auth.RequiresSponsorshipCanada)
		case us:
			return yesNo(auth.RequiresSponsorshipUS)
		}
	}
	return ""
}

func yesNo(v bool) string {
	if v {
		return "Yes."
	}
	return "No."
}

// metaAnswer answers a prompt from the profile's contact details and general metadata.
func metaAnswer(prompt string, p *types.Profile) (string, string) {
	if p == nil {
		return "", ""
	}
	q := norm(prompt)
	meta := p.GeneralMeta

	if strings.Contains(q, "email") && !strings.Contains(q, "password") {
		if email := strings.TrimSpace(p.PersonalInfo.Email); email != "" {
			return email, SourceProfileEmail
		}
	}
	if answer := workAuthAnswer(prompt, meta.WorkAuthorization); answer != "" {
		return answer, SourceWorkAuthorization
	}
	if strings.Contains(q, "year") && mentionsSchool.MatchString(q) {
		if v := strings.TrimSpace(meta.UniversityYear); v != "" {
			return v, SourceUniversityYear
		}
	}
	if strings.Contains(q, "graduat") {
		if v := strings.TrimSpace(meta.GraduationYear); v != "" {
			return v, SourceGraduationYear
		}
	}
	if strings.Contains(q, "gpa") {
		if v := strings.TrimSpace(meta.GPA); v != "" {
			return v, SourceGPA
		}
	}
	if strings.Contains(q, "availab") || strings.Contains(q, "start") {
		var terms []string
		for _, t := range meta.AvailabilityTerms {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) > 0 {
			return strings.Join(terms, ", "), SourceAvailability
		}
	}
	return "", ""
}

// draftAnswer matches a prompt against drafted question/answer pairs, then short answers.
// Either side may contain the other.
func draftAnswer(prompt string, d *types.Drafts) (string, string) {
	if d == nil {
		return "", ""
	}
	q := norm(prompt)
	if q == "" {
		return "", ""
	}
	for _, pair := range d.QuestionAnswerPairs {
		question := norm(pair.Question)
		answer := strings.TrimSpace(pair.Answer)
		if question == "" || answer == "" {
			continue
		}
		if strings.Contains(q, question) || strings.Contains(question, q) {
			return answer, SourceDraftPairs
		}
	}
	for _, key := range sortedKeys(d.ShortAnswers) {
		answer := strings.TrimSpace(d.ShortAnswers[key])
		k := norm(strings.ReplaceAll(key, "_", " "))
		if answer == "" || k == "" {
			continue
		}
		if strings.Contains(q, k) || strings.Contains(k, q) {
			return answer, SourceDraftShortAnswers
		}
	}
	return "", ""
}
