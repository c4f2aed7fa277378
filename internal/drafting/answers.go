package drafting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/types"
)

const maxQuestionKeyLen = 48

var (
	workAuthQuestion     = regexp.MustCompile(`(?i)\b(authorized|eligible)\b[^.]{0,60}\bwork\b`)
	sponsorshipQuestion  = regexp.MustCompile(`(?i)\b(sponsorship|sponsor|visa)\b`)
	mentionsUS           = regexp.MustCompile(`(?i)\b(us|usa|united states|america)\b`)
	mentionsCanada       = regexp.MustCompile(`(?i)\b(canada|canadian)\b`)
	gpaQuestion          = regexp.MustCompile(`(?i)\bgpa\b`)
	graduationQuestion   = regexp.MustCompile(`(?i)\bgraduat(?:e|ion|ing)\b`)
	availabilityQuestion = regexp.MustCompile(`(?i)\b(available|availability|start date|start)\b`)
	nonKeyChars          = regexp.MustCompile(`[^a-z0-9]+`)
)

// profileAnswer answers factual questions straight from the profile. It returns "" when the
// question needs a written answer.
func profileAnswer(question string, p *types.Profile) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return ""
	}
	auth := p.GeneralMeta.WorkAuthorization
	lower := strings.ToLower(q)

	if workAuthQuestion.MatchString(q) {
		switch {
		case mentionsCanada.MatchString(q):
			return authSentence("Canada", auth.CanadaAuthorized, auth.RequiresSponsorshipCanada)
		case mentionsUS.MatchString(q):
			return authSentence("the United States", auth.USAuthorized, auth.RequiresSponsorshipUS)
		}
	}
	if sponsorshipQuestion.MatchString(q) {
		switch {
		case mentionsCanada.MatchString(q):
			return yesNoSentence(auth.RequiresSponsorshipCanada)
		case mentionsUS.MatchString(q):
			return yesNoSentence(auth.RequiresSponsorshipUS)
		}
	}
	if gpaQuestion.MatchString(q) {
		if gpa := profileGPA(p); gpa != "" {
			return "My current GPA is " + gpa + "."
		}
		return "I have not provided a GPA in my profile yet."
	}
	if graduationQuestion.MatchString(q) {
		if y := profileGraduation(p); y != "" {
			return "My expected graduation is " + y + "."
		}
		return "I have not provided my expected graduation date in my profile yet."
	}
	if availabilityQuestion.MatchString(q) &&
		(strings.Contains(lower, "internship") || strings.Contains(lower, "term") || strings.Contains(lower, "summer")) {
		if terms := p.GeneralMeta.AvailabilityTerms; len(terms) > 0 {
			return "I am available for " + strings.Join(terms, ", ") + " internship/co-op opportunities."
		}
		return "My internship availability is listed in my profile preferences."
	}
	return ""
}

func authSentence(country string, authorized, sponsorship bool) string {
	switch {
	case !authorized:
		return "No, I am not currently authorized to work in " + country + "."
	case sponsorship:
		return "Yes, I am authorized to work in " + country + "; sponsorship requirements can be discussed if needed."
	default:
		return "Yes, I am authorized to work in " + country + " and do not require sponsorship."
	}
}

func yesNoSentence(v bool) string {
	if v {
		return "Yes."
	}
	return "No."
}

// questionKey derives the short-answer key for the idx-th question.
func questionKey(question string, idx int) string {
	base := strings.Trim(nonKeyChars.ReplaceAllString(strings.ToLower(question), "_"), "_")
	if base == "" {
		return "question_" + strconv.Itoa(idx+1)
	}
	if len(base) > maxQuestionKeyLen {
		base = strings.TrimRight(base[:maxQuestionKeyLen], "_")
	}
	return base
}

func fallbackAnswer(question, role string, evidence []string, internshipMode bool, identity string) string {
	anchor := "relevant project work"
	if len(evidence) > 0 {
		anchor = strings.TrimRight(firstSentence(evidence[0]), ".!?")
	}
	prefix := ""
	if internshipMode && identity != "" {
		prefix = identity + " "
	}
	return fmt.Sprintf("%sFor \"%s\", I am a strong fit for %s because my background includes %s. "+
		"I focus on building reliable solutions and collaborating effectively to deliver measurable outcomes.",
		prefix, question, role, anchor)
}
