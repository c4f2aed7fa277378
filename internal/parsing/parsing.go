// Package parsing turns raw posting text and payloads into structured job fields.
package parsing

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/apply-autopilot/internal/types"
)

// Parser is the parsing capability consumed by the pipeline.
type Parser interface {
	Parse(rawText string, rawPayload map[string]any) types.StructuredJob
}

// Heuristic parses postings with regular expressions and payload hints.
type Heuristic struct {
	now func() time.Time
}

// NewHeuristic returns the regex-based parser.
func NewHeuristic() *Heuristic {
	return &Heuristic{now: time.Now}
}

var (
	seniorityTerms = []string{"intern", "junior", "mid", "senior", "staff", "principal", "lead"}
	seniorityRes   = func() []*regexp.Regexp {
		out := make([]*regexp.Regexp, len(seniorityTerms))
		for i, t := range seniorityTerms {
			out[i] = regexp.MustCompile(`\b` + t)
		}
		return out
	}()

	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)title:\s*(.{1,255}?)(?:\n|$|\s{2,}|company:|location:)`),
		regexp.MustCompile(`(?im)position:\s*(.{1,255}?)(?:\n|$|\s{2,}|company:|location:)`),
		regexp.MustCompile(`(?im)job title:\s*(.{1,255}?)(?:\n|$|\s{2,}|company:|location:)`),
	}
	companyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)company:\s*(.{1,255}?)(?:\n|$|\s{2,}|location:|title:|position:)`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)location:\s*(.{1,255}?)(?:\n|$|\s{2,}|company:|title:|position:)`),
		regexp.MustCompile(`(?i)\b(remote|hybrid|onsite)\b`),
	}
	bulletPattern = regexp.MustCompile(`(?m)^\s*[-*•]\s+(.+)$`)

	questionLinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*question\s*:\s*(.+)$`),
		regexp.MustCompile(`^\s*(?:[-*]|\d+\.)\s*(.+\?)\s*$`),
	}

	unavailablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bjob (?:you['’]re|you are) looking for is no longer available\b`),
		regexp.MustCompile(`(?i)\bposition has been filled\b`),
		regexp.MustCompile(`(?i)\bposte .* a été pourvu\b`),
		regexp.MustCompile(`(?i)\bno longer available\b`),
		regexp.MustCompile(`(?i)\bworkday is currently unavailable\b`),
		regexp.MustCompile(`(?i)\bmaintenance page\b`),
	}

	coverLetterDoc = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcover letter\b.*\b(required|must|submit|include|attach)\b`),
		regexp.MustCompile(`(?i)\b(required|must|submit|include|attach)\b.*\bcover letter\b`),
	}
	transcriptDoc = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btranscript\b.*\b(required|must|submit|include|attach)\b`),
		regexp.MustCompile(`(?i)\b(required|must|submit|include|attach)\b.*\btranscript\b`),
	}
)

// Parse never fails: missing values are left empty.
func (h *Heuristic) Parse(rawText string, payload map[string]any) types.StructuredJob {
	if payload == nil {
		payload = map[string]any{}
	}

	s := types.StructuredJob{
		Title:    firstNonEmpty(sanitizeScalar(payloadString(payload, "title"), 255), findFirst(titlePatterns, rawText, 255)),
		Company:  firstNonEmpty(sanitizeScalar(payloadString(payload, "company"), 255), findFirst(companyPatterns, rawText, 255)),
		Location: firstNonEmpty(sanitizeScalar(payloadString(payload, "location"), 255), findFirst(locationPatterns, rawText, 255)),
	}

	s.Seniority = sanitizeScalar(payloadString(payload, "seniority"), 100)
	if s.Seniority == "" {
		lowered := strings.ToLower(rawText)
		for i, re := range seniorityRes {
			if re.MatchString(lowered) {
				s.Seniority = seniorityTerms[i]
				break
			}
		}
	}

	s.Requirements = payloadStrings(payload, "requirements")
	if len(s.Requirements) == 0 {
		for _, m := range bulletPattern.FindAllStringSubmatch(rawText, -1) {
			s.Requirements = append(s.Requirements, strings.TrimSpace(m[1]))
			if len(s.Requirements) == 12 {
				break
			}
		}
	}
	s.MustHave = payloadStrings(payload, "must_have")
	if len(s.MustHave) == 0 {
		for _, req := range s.Requirements {
			l := strings.ToLower(req)
			if strings.Contains(l, "must") || strings.Contains(l, "required") {
				s.MustHave = append(s.MustHave, req)
			}
		}
	}

	s.RequiresCoverLetter, s.RequiresTranscript = requiredDocuments(rawText, payload)
	s.ApplicationQuestions = applicationQuestions(rawText, payload)
	s.PostingActive, s.PostingInactiveReason = postingActive(rawText, payload)
	s.NormalizedAt = h.now().UTC()
	return s
}

func requiredDocuments(rawText string, payload map[string]any) (cover, transcript bool) {
	tokens := map[string]bool{}
	for _, d := range payloadStrings(payload, "required_documents") {
		tokens[strings.ToLower(strings.TrimSpace(d))] = true
	}
	cover = payloadBool(payload, "requires_cover_letter") || tokens["cover_letter"] || tokens["cover letter"]
	transcript = payloadBool(payload, "requires_transcript") || tokens["transcript"] ||
		tokens["official transcript"] || tokens["unofficial transcript"]

	if !cover {
		cover = anyMatch(coverLetterDoc, rawText)
	}
	if !transcript {
		transcript = anyMatch(transcriptDoc, rawText)
	}
	return cover, transcript
}

func applicationQuestions(rawText string, payload map[string]any) []string {
	questions := payloadStrings(payload, "application_questions")

	for _, line := range strings.Split(strings.ReplaceAll(rawText, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.Contains(line, "?") && !strings.HasPrefix(strings.ToLower(line), "question:") {
			continue
		}
		candidate := ""
		for _, p := range questionLinePatterns {
			if m := p.FindStringSubmatch(line); m != nil {
				candidate = strings.TrimSpace(m[1])
				break
			}
		}
		if candidate == "" && strings.HasSuffix(line, "?") {
			candidate = line
		}
		if candidate != "" && utf8.RuneCountInString(candidate) <= maxQuestionLen {
			questions = append(questions, candidate)
		}
	}

	out := make([]string, 0, len(questions))
	seen := map[string]bool{}
	for _, q := range questions {
		n := CollapseSpace(q)
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func postingActive(rawText string, payload map[string]any) (bool, string) {
	if v, ok := payload["posting_active"].(bool); ok && !v {
		return false, "posting_active=false in payload"
	}
	for _, p := range unavailablePatterns {
		if m := p.FindString(rawText); m != "" {
			return false, fmt.Sprintf("matched unavailable pattern: %s", m)
		}
	}
	return true, ""
}

// sanitizeScalar collapses whitespace and truncates, preferring a word boundary.
func sanitizeScalar(value string, maxLen int) string {
	text := strings.Trim(CollapseSpace(value), " -|:\t")
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	head := string(runes[:maxLen])
	boundary := strings.LastIndexAny(head, " ,;")
	if boundary >= int(float64(len(head))*0.6) {
		head = head[:boundary]
	}
	return strings.TrimRight(head, " -|,;")
}

func findFirst(patterns []*regexp.Regexp, text string, maxLen int) string {
	for _, p := range patterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v := sanitizeScalar(m[1], maxLen); v != "" {
				return v
			}
		}
	}
	return ""
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func payloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadBool(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

// payloadStrings reads a list or a single string, dropping blanks.
func payloadStrings(payload map[string]any, key string) []string {
	var out []string
	switch v := payload[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
