package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json fence", "```json\n{\"answers\": [\"Yes.\"]}\n```", `{"answers": ["Yes."]}`},
		{"bare fence", "```\n{\"answers\": []}\n```", `{"answers": []}`},
		{"plain", `{"answers": ["No."]}`, `{"answers": ["No."]}`},
		{"preamble", "Here are the answers:\n{\"answers\": [\"I enjoy Go.\"]}", `{"answers": ["I enjoy Go."]}`},
		{"trailing chatter", "{\"answers\": [\"A\"]}\n\nLet me know if you need more!", `{"answers": ["A"]}`},
		{"array", "Answers:\n[\"one\", \"two\"]", `["one", "two"]`},
		{"escaped quotes", `Result: {"a": "He said \"hi\" {ok}"}`, `{"a": "He said \"hi\" {ok}"}`},
		{"no json", "  just prose  ", "just prose"},
		{"unbalanced", `{"a": [1, 2`, `{"a": [1, 2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"outer": {"inner": 1}}`, extractJSONObject(`{"outer": {"inner": 1}} tail`))
	assert.Equal(t, `[[1], [2]]`, extractJSONArray(`[[1], [2]] tail`))
	assert.Empty(t, extractJSONObject("not json"))
	assert.Empty(t, extractJSONArray(""))
}
