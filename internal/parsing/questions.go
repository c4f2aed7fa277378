package parsing

import (
	"encoding/json"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	minQuestionLen = 12
	maxQuestionLen = 320
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]+>`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
	questionPrefix = regexp.MustCompile(`(?i)^(why|how|what|describe|tell us|tell me|please describe|please share|are you|do you|will you|can you|have you|where|when|explain)\b`)
	questionBans   = []*regexp.Regexp{
		regexp.MustCompile(`\b(cookie|privacy|site map|accessibility|skip to|terms of use)\b`),
		regexp.MustCompile(`\b(sign in|log in|create account|alert)\b`),
		regexp.MustCompile(`\b(linkedin|facebook|instagram|youtube|x\.com)\b`),
	}
	questionKeys = map[string]bool{
		"question": true, "questiontext": true, "questionlabel": true, "prompt": true,
		"label": true, "fieldlabel": true, "helptext": true,
	}

	docVerb     = `(required|must|submit|include|attach)`
	coverBefore = regexp.MustCompile(`\b` + docVerb + `\b[^.\n]{0,60}\bcover letter\b`)
	coverAfter  = regexp.MustCompile(`\bcover letter\b[^.\n]{0,60}\b` + docVerb + `\b`)
	transBefore = regexp.MustCompile(`\b` + docVerb + `\b[^.\n]{0,60}\btranscript\b`)
	transAfter  = regexp.MustCompile(`\btranscript\b[^.\n]{0,60}\b` + docVerb + `\b`)
)

// NormalizeQuestion strips markup and entities and collapses whitespace.
func NormalizeQuestion(text string) string {
	v := html.UnescapeString(tagPattern.ReplaceAllString(text, " "))
	return strings.Trim(CollapseSpace(v), " -•\t")
}

// LooksLikeQuestion reports whether text reads like an applicant-facing question.
func LooksLikeQuestion(text string) bool {
	v := NormalizeQuestion(text)
	n := utf8.RuneCountInString(v)
	if n < minQuestionLen || n > maxQuestionLen {
		return false
	}
	lowered := strings.ToLower(v)
	for _, ban := range questionBans {
		if ban.MatchString(lowered) {
			return false
		}
	}
	return strings.HasSuffix(v, "?") || questionPrefix.MatchString(v)
}

// DedupeQuestions normalizes values and drops case-insensitive repeats, keeping at most max.
func DedupeQuestions(values []string, max int) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		norm := NormalizeQuestion(v)
		if norm == "" {
			continue
		}
		key := strings.ToLower(norm)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, norm)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// QuestionsFromText picks question lines out of plain posting text.
func QuestionsFromText(text string) []string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if LooksLikeQuestion(line) {
			candidates = append(candidates, line)
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "question:") {
			tail := strings.TrimSpace(line[len("question:"):])
			if utf8.RuneCountInString(tail) >= minQuestionLen {
				candidates = append(candidates, tail)
			}
		}
	}
	return DedupeQuestions(candidates, 15)
}

// QuestionsFromHTML collects question-like labels, legends, aria-labels and placeholders.
func QuestionsFromHTML(doc *goquery.Document) []string {
	var candidates []string
	add := func(v string) {
		if LooksLikeQuestion(v) {
			candidates = append(candidates, v)
		}
	}
	doc.Find("label, legend").Each(func(_ int, s *goquery.Selection) { add(s.Text()) })
	doc.Find("[aria-label]").Each(func(_ int, s *goquery.Selection) { add(s.AttrOr("aria-label", "")) })
	doc.Find("[placeholder]").Each(func(_ int, s *goquery.Selection) { add(s.AttrOr("placeholder", "")) })
	return DedupeQuestions(candidates, 20)
}

// QuestionsFromScripts scans JSON-LD and hydration payloads for question strings.
func QuestionsFromScripts(doc *goquery.Document) []string {
	var candidates []string
	doc.Find(`script[type="application/ld+json"], script#__NEXT_DATA__`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		WalkJSONStrings(data, func(key, parent, value string) {
			k := nonAlnum.ReplaceAllString(strings.ToLower(key), "")
			p := nonAlnum.ReplaceAllString(strings.ToLower(parent), "")
			if questionKeys[k] || strings.Contains(k, "question") ||
				(strings.Contains(p, "question") && utf8.RuneCountInString(value) <= maxQuestionLen) {
				if LooksLikeQuestion(value) {
					candidates = append(candidates, value)
				}
			}
		})
	})
	return DedupeQuestions(candidates, 20)
}

// WalkJSONStrings calls fn for every string value reachable in data, passing the key that
// holds it and the key of the enclosing object. Object keys are visited in sorted order.
// List items inherit the list's key.
func WalkJSONStrings(data any, fn func(key, parent, value string)) {
	walkJSON(data, "", "", fn)
}

func walkJSON(data any, key, parent string, fn func(key, parent, value string)) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(v[k], k, key, fn)
		}
	case []any:
		for _, item := range v {
			walkJSON(item, key, parent, fn)
		}
	case string:
		fn(key, parent, v)
	}
}

// RequiredDocuments lists documents the posting text says must be supplied.
func RequiredDocuments(text string) []string {
	lowered := strings.ToLower(text)
	var docs []string
	if coverBefore.MatchString(lowered) || coverAfter.MatchString(lowered) {
		docs = append(docs, "cover_letter")
	}
	if transBefore.MatchString(lowered) || transAfter.MatchString(lowered) {
		docs = append(docs, "transcript")
	}
	return docs
}
