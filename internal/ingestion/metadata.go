package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// QuestionSources counts where a posting's application questions came from.
type QuestionSources struct {
	Provided    int
	JSONScripts int
	Labels      int
	TextLines   int
}

// SourceMetadata describes how a posting was fetched. It is stored under "source_metadata" in
// the job's raw payload.
type SourceMetadata struct {
	StatusCode      int
	FinalURL        string
	Platform        string
	Rendered        bool
	ContentHash     string
	FetchedAt       time.Time
	QuestionSources QuestionSources
}

func (m SourceMetadata) toMap() map[string]any {
	return map[string]any{
		"status_code":  m.StatusCode,
		"final_url":    m.FinalURL,
		"platform":     m.Platform,
		"rendered":     m.Rendered,
		"content_hash": m.ContentHash,
		"fetched_at":   m.FetchedAt.UTC().Format(time.RFC3339),
		"question_sources": map[string]any{
			"provided":     m.QuestionSources.Provided,
			"json_scripts": m.QuestionSources.JSONScripts,
			"labels":       m.QuestionSources.Labels,
			"text_lines":   m.QuestionSources.TextLines,
		},
	}
}

// computeHash returns the SHA-256 hex digest of content.
func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
