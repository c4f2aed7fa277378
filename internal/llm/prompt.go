package llm

import (
	"fmt"
	"strings"
)

// Prompt is a task statement plus the rules, facts and evidence the model must stay within.
type Prompt struct {
	Task        string
	Constraints []string
	Facts       []Fact
	Evidence    []string
	// JSONShape, when set, is appended as the required response structure.
	JSONShape string
}

// Fact is one labelled line of context.
type Fact struct {
	Label string
	Value string
}

// MaxPromptEvidence caps the evidence lines sent with any prompt.
const MaxPromptEvidence = 8

// String renders the prompt in a fixed layout.
func (p Prompt) String() string {
	var sb strings.Builder
	sb.WriteString(p.Task)
	sb.WriteString("\n")
	if len(p.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		for _, c := range p.Constraints {
			sb.WriteString("- " + c + "\n")
		}
	}
	for _, f := range p.Facts {
		fmt.Fprintf(&sb, "%s: %s\n", f.Label, f.Value)
	}
	sb.WriteString("Evidence:\n")
	ev := p.Evidence
	if len(ev) > MaxPromptEvidence {
		ev = ev[:MaxPromptEvidence]
	}
	if len(ev) == 0 {
		sb.WriteString("- No evidence provided\n")
	}
	for _, line := range ev {
		sb.WriteString("- " + line + "\n")
	}
	if p.JSONShape != "" {
		sb.WriteString("Return ONLY valid JSON matching this structure, no markdown:\n")
		sb.WriteString(p.JSONShape)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
