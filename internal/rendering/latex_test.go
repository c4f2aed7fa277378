package rendering

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/types"
)

func profile() *types.Profile {
	return &types.Profile{
		PersonalInfo: types.PersonalInfo{Name: "Sam Lee", Email: "sam@example.com", GitHub: "github.com/sam"},
		Summary:      "Student engineer focused on backend systems.",
		Skills:       []string{"Go", "SQL"},
		Experience: []types.Experience{
			{Company: "Acme", Title: "Software Intern", StartDate: "2024-05", EndDate: "2024-08", Bullets: []string{"Cut p99 latency 35%"}},
			{Company: "Initech", Title: "Research Assistant", StartDate: "2025-01", EndDate: "present"},
			{Company: "Acme", Title: "Software Intern", StartDate: "2023-05", EndDate: "2023-08"},
		},
		Education: []types.Education{{School: "State University", Degree: "BSc Computer Science", EndDate: "2027"}},
	}
}

func TestRenderResume(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	out, err := r.RenderResume(profile(), &types.Drafts{BulletOrdering: []string{"Shipped R&D tooling"}})
	require.NoError(t, err)

	assert.Contains(t, out, `{\LARGE\bfseries Sam Lee}`)
	assert.Contains(t, out, `sam@example.com $|$ github.com/sam`)
	assert.Contains(t, out, `\item Shipped R\&D tooling`)
	assert.Contains(t, out, `\item Cut p99 latency 35\%`)
	assert.Contains(t, out, `2023-05 -- 2023-08, 2024-05 -- 2024-08`)
	assert.Contains(t, out, `\textbf{State University}, BSc Computer Science`)
	require.Contains(t, out, `\textbf{Initech}`)
	assert.Less(t, strings.Index(out, `\textbf{Initech}`), strings.Index(out, `\textbf{Acme}`))
}

func TestRenderResume_RequiresProfile(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	_, err = r.RenderResume(nil, nil)
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestRenderCoverLetter(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	letter := "Sam Lee\nsam@example.com\n\nDear Hiring Manager,\n\nFirst paragraph\ncontinues here.\n\nSecond at 100%.\n\nSincerely,\nSam Lee"

	out, err := r.RenderCoverLetter(profile(), "Globex", letter, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, out, `\date{March 5, 2026}`)
	assert.Contains(t, out, `\begin{letter}{Hiring Manager\\Globex}`)
	assert.Contains(t, out, "First paragraph continues here.")
	assert.Contains(t, out, `Second at 100\%.`)
	assert.NotContains(t, out, "Sincerely,\nSam")

	_, err = r.RenderCoverLetter(profile(), "Globex", "  ", time.Now())
	assert.Error(t, err)
}

func TestLetterBody(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two."}, LetterBody("Dear Team,\nOne.\n\nTwo.\nBest regards,\nSam"))
	assert.Equal(t, []string{"No salutation here."}, LetterBody("No salutation here."))
	assert.Empty(t, LetterBody("Dear Team,\nSincerely,"))
}

func TestNewRenderer_TemplateOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, resumeTemplate), []byte(`RESUME {{escape .Name}}`), 0o644))

	r, err := NewRenderer(dir)
	require.NoError(t, err)
	out, err := r.RenderResume(&types.Profile{PersonalInfo: types.PersonalInfo{Name: "A_B"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, `RESUME A\_B`, out)

	// the letter template is not overridden
	_, err = r.RenderCoverLetter(nil, "Globex", "Dear X,\nHello.", time.Now())
	assert.NoError(t, err)
}

func TestParseTemplate_Errors(t *testing.T) {
	_, err := parseTemplate("/nonexistent/template.tex")
	var templateErr *TemplateError
	require.ErrorAs(t, err, &templateErr)
	assert.Contains(t, err.Error(), "template file not found")

	path := filepath.Join(t.TempDir(), "bad.tex")
	require.NoError(t, os.WriteFile(path, []byte(`{{.Invalid{{}}`), 0o644))
	_, err = parseTemplate(path)
	assert.ErrorAs(t, err, &templateErr)
}

func TestMergeDateRanges(t *testing.T) {
	got := mergeDateRanges([]dateRange{
		{StartDate: "2024-01", EndDate: "present"},
		{StartDate: "2022-01", EndDate: "2022-06"},
		{StartDate: "2022-01", EndDate: "2022-06"},
	})
	assert.Equal(t, "2022-01 -- 2022-06, 2024-01 -- Present", got)
	assert.Empty(t, mergeDateRanges(nil))
}
