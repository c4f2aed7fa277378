package ingestion

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/parsing"
)

const maxPostingQuestions = 20

// Page is a fetched posting plus the caller's overrides.
type Page struct {
	SourceURL  string
	FinalURL   string
	HTML       string
	StatusCode int
	Rendered   bool

	ExternalID string
	Title      string
	Company    string
	Location   string
	Questions  []string
}

// BuildPayload extracts a job payload from a posting page: flattened text, title, application
// questions gathered from provided values, structured scripts, form labels and text lines, and
// the documents the text says are required.
func BuildPayload(p Page, now time.Time) (map[string]any, error) {
	text, err := PageText(p.HTML)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, err
	}

	platform := fetch.DetectPlatform(p.SourceURL)
	textQuestions := parsing.QuestionsFromText(text)
	labelQuestions := parsing.QuestionsFromHTML(doc)
	scriptQuestions := parsing.QuestionsFromScripts(doc)

	provided := 0
	for _, q := range p.Questions {
		if parsing.NormalizeQuestion(q) != "" {
			provided++
		}
	}
	all := append(append(append(append([]string{}, p.Questions...), scriptQuestions...), labelQuestions...), textQuestions...)

	title := p.Title
	if title == "" {
		title = fetch.Title(p.HTML)
	}
	externalID := p.ExternalID
	if externalID == "" {
		externalID = p.SourceURL
	}
	finalURL := p.FinalURL
	if finalURL == "" {
		finalURL = p.SourceURL
	}

	meta := SourceMetadata{
		StatusCode:  p.StatusCode,
		FinalURL:    finalURL,
		Platform:    string(platform),
		Rendered:    p.Rendered,
		ContentHash: computeHash(text),
		FetchedAt:   now,
		QuestionSources: QuestionSources{
			Provided:    provided,
			JSONScripts: len(scriptQuestions),
			Labels:      len(labelQuestions),
			TextLines:   len(textQuestions),
		},
	}

	return map[string]any{
		"external_id":           externalID,
		"url":                   p.SourceURL,
		"platform":              string(platform),
		"title":                 title,
		"company":               p.Company,
		"location":              p.Location,
		"raw_text":              CleanText(text),
		"application_questions": parsing.DedupeQuestions(all, maxPostingQuestions),
		"required_documents":    parsing.RequiredDocuments(text),
		"source_metadata":       meta.toMap(),
	}, nil
}
