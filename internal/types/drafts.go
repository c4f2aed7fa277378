package types

// Drafts is the bundle of generated application materials for a job.
type Drafts struct {
	ResumeSummary       string            `json:"resume_summary"`
	CoverLetter         string            `json:"cover_letter"`
	BulletOrdering      []string          `json:"bullet_ordering,omitempty"`
	ShortAnswers        map[string]string `json:"short_answers,omitempty"`
	QuestionAnswerPairs []QuestionAnswer  `json:"question_answer_pairs,omitempty"`
}

// QuestionAnswer pairs an application question with a drafted answer.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Claim ties a sentence in a draft back to the profile field that supports it.
type Claim struct {
	Claim       string `json:"claim"`
	SourceField string `json:"source_field"`
	Evidence    string `json:"evidence,omitempty"`
	DraftField  string `json:"draft_field,omitempty"`
}

// EvidenceChunk is a retrieved piece of profile text.
type EvidenceChunk struct {
	ChunkKey    string  `json:"chunk_key"`
	Text        string  `json:"text"`
	SourceField string  `json:"source_field"`
	Score       float64 `json:"score"`
}
