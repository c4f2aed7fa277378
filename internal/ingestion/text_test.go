package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"headings kept", "# Title\n## Subtitle\nContent here", "# Title\n## Subtitle\nContent here"},
		{"bullets kept", "- Item 1\n- Item 2\n* Item 3", "- Item 1\n- Item 2\n* Item 3"},
		{"spaces collapsed", "Line    with    multiple    spaces", "Line with multiple spaces"},
		{"blank runs capped", "Line 1\n\n\n\n\nLine 2", "Line 1\n\nLine 2"},
		{"line endings", "Line 1\r\nLine 2\rLine 3\nLine 4", "Line 1\nLine 2\nLine 3\nLine 4"},
		{"indent kept", "Requirements:\n  - Go\n  - SQL", "Requirements:\n  - Go\n  - SQL"},
		{"trailing space", "Line 1   \nLine 2\t", "Line 1\nLine 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestPageText(t *testing.T) {
	html := `<html><head><style>.x{}</style></head><body>
		<h1>Backend   Intern</h1>
		<p>Build APIs.</p><p>Ship daily.</p>
		<ul><li>Go</li><li>SQL</li></ul>
		<script>var noise = 1;</script>
		<noscript>Enable JavaScript</noscript>
	</body></html>`

	text, err := PageText(html)
	require.NoError(t, err)
	assert.Equal(t, "Backend Intern\nBuild APIs.\nShip daily.\nGo\nSQL", text)
}

func TestPageText_Fragment(t *testing.T) {
	text, err := PageText("<p>Work on <b>data</b></p>")
	require.NoError(t, err)
	assert.Equal(t, "Work on data", text)
}
