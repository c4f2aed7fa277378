package formcatalog

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formHTML = `<html><head><title>Apply - Acme</title></head><body>
<form>
	<label for="email">Email *</label><input id="email" name="email" type="email">
	<label>First name <input name="first_name" required></label>
	<input type="hidden" name="csrf" value="x">
	<input type="submit" value="Go">
	<div hidden><input name="ghost"></div>
	<select id="country" aria-label="Country"><option value="">Select</option><option>Canada</option><option>United States</option></select>
	<textarea name="why" placeholder="Why Acme?"></textarea>
	<div role="textbox" aria-label="Notes"></div>
	<fieldset><legend>Need sponsorship?</legend>
		<label><input type="radio" name="sponsor" value="yes">Yes</label>
		<label><input type="radio" name="sponsor" value="no">No</label>
	</fieldset>
</form>
<script type="application/ld+json">{"@type":"JobPosting","title":"Engineer"}</script>
<script id="__NEXT_DATA__" type="application/json">{"props":{"questions":[{"text":"Why do you want to join?"}]}}</script>
<script>window.x = 1;</script>
</body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestControls(t *testing.T) {
	controls := Controls(parse(t, formHTML))
	require.Len(t, controls, 7)

	email := controls[0]
	assert.Equal(t, "input", email.Tag)
	assert.Equal(t, "email", email.Type)
	assert.Equal(t, "Email", email.Label)
	assert.True(t, email.Required, "asterisk marks required")
	assert.Equal(t, `input[id="email"]`, email.Selector)

	first := controls[1]
	assert.Equal(t, "First name", first.Label)
	assert.Equal(t, "text", first.Type)
	assert.True(t, first.Required)

	country := controls[2]
	assert.Equal(t, "select", country.Type)
	assert.Equal(t, "", country.Label)
	assert.Equal(t, "Country", country.AriaLabel)
	assert.Equal(t, []string{"Select", "Canada", "United States"}, country.Options)

	assert.Equal(t, "textarea", controls[3].Type)
	assert.Equal(t, "Why Acme?", controls[3].Placeholder)

	assert.Equal(t, "div", controls[4].Tag)
	assert.Equal(t, "text", controls[4].Type)

	for _, radio := range controls[5:] {
		assert.Equal(t, "radio", radio.Type)
		assert.Equal(t, "Need sponsorship?", radio.Group)
	}
	assert.Equal(t, "Yes", controls[5].Label)
	assert.Equal(t, "no", controls[6].Value)
}

func TestControls_LabelSources(t *testing.T) {
	doc := parse(t, `<html><body>
		<span id="q1">Years of</span><span id="q2">experience</span>
		<input name="years" aria-labelledby="q1 q2">
		<label>Resume <select name="pick"><option>PDF</option></select></label>
	</body></html>`)
	controls := Controls(doc)
	require.Len(t, controls, 2)
	assert.Equal(t, "Years of experience", controls[0].Label)
	assert.Equal(t, "Resume", controls[1].Label, "option text is not part of the label")
}

func TestScripts(t *testing.T) {
	scripts := Scripts(parse(t, formHTML))
	require.Len(t, scripts, 2)
	assert.Equal(t, "ld_json", scripts[0].Source)
	assert.Equal(t, "next_data", scripts[1].Source)
}

func TestScripts_Truncated(t *testing.T) {
	big := `<html><body><script type="application/ld+json">` + strings.Repeat("a", maxScriptChars+10) + `</script></body></html>`
	scripts := Scripts(parse(t, big))
	require.Len(t, scripts, 1)
	assert.Len(t, scripts[0].Text, maxScriptChars)
}

func TestLocate(t *testing.T) {
	doc := parse(t, formHTML)

	tests := []struct {
		name   string
		target Target
		want   []string
	}{
		{"by id", Target{ID: "email", Name: "other"}, []string{`input[id="email"]`}},
		{"by name", Target{Name: "first_name"}, []string{"First name"}},
		{"by aria label", Target{AriaLabel: "notes"}, []string{"Notes"}},
		{"by label", Target{Label: "first NAME"}, []string{"First name"}},
		{"radio group by name", Target{Name: "sponsor"}, []string{"Yes", "No"}},
		{"radio group by legend", Target{Label: "Need sponsorship?"}, []string{"Yes", "No"}},
		{"missing", Target{ID: "nope", Label: "Nope"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found := Locate(doc, tt.target)
			var got []string
			for _, c := range found {
				switch {
				case c.ID != "":
					got = append(got, c.Selector)
				case c.Label != "":
					got = append(got, c.Label)
				default:
					got = append(got, c.AriaLabel)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetOf(t *testing.T) {
	target := TargetOf(map[string]any{"id": " a ", "name": "b", "aria_label": "c", "options": []any{"x"}}, " Label ")
	assert.Equal(t, Target{ID: "a", Name: "b", AriaLabel: "c", Label: "Label"}, target)
	assert.Equal(t, Target{}, TargetOf(nil, ""))
}
