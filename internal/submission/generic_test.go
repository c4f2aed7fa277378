package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/browser/browsertest"
	"github.com/jonathan/apply-autopilot/internal/config"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/secrets"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const genericURL = "https://jobs.example.com/acme/42"

const genericForm = `<html><body><form>
<label for="email">Email</label><input id="email" type="email">
<label for="country">Country</label><select id="country"><option>Canada</option><option>United States</option></select>
<fieldset><legend>Authorized?</legend>
  <label><input type="radio" name="auth" value="y"> Yes</label>
  <label><input type="radio" name="auth" value="n"> No</label>
</fieldset>
<label><input type="checkbox" id="terms"> I agree to the terms</label>
<label for="pw">Password</label><input id="pw" type="password">
<label for="trap">Robots only</label><input id="trap" name="website">
<button id="back" type="button">Back</button>
<button id="submit" type="submit">Submit application</button>
</form></body></html>`

const submitSel = `button[id="submit"]`

func genericFields() []types.ResolvedField {
	return []types.ResolvedField{
		{FieldKey: "form_email", Label: "Email", FieldType: "email", Value: "sam@example.com", Source: formfill.SourceProfileEmail,
			Metadata: map[string]any{"id": "email", "surface": "main"}},
		{FieldKey: "form_country", Label: "Country", FieldType: "select", Value: "united states of america", Source: "draft.short_answers",
			Metadata: map[string]any{"id": "country"}},
		{FieldKey: "form_auth", Label: "Authorized?", FieldType: "radio", Value: "Yes", Source: formfill.SourceWorkAuthorization,
			Metadata: map[string]any{"name": "auth"}},
		{FieldKey: "form_terms", Label: "I agree to the terms", FieldType: "checkbox", Value: "Yes", Source: "draft.short_answers",
			Metadata: map[string]any{"id": "terms"}},
		{FieldKey: "form_pw", Label: "Password", FieldType: "password", Value: formfill.RedactedValue, RuntimeValueEnv: "FORM_PW",
			Source: "secret.env.FORM_PW", Metadata: map[string]any{"id": "pw", "sensitive": true}},
		{FieldKey: "form_website", Label: "Robots only", Source: formfill.SourceHoneypot,
			Metadata: map[string]any{"id": "trap", "name": "website"}},
		{FieldKey: "form_missing", Label: "LinkedIn", Value: "https://linkedin.com/in/sam", Source: "draft.short_answers",
			Metadata: map[string]any{"id": "linkedin"}},
		{FieldKey: "script_ld_json_1", Label: "Structured script (ld_json)", FieldType: types.FieldTypeScriptJSON, Value: "N/A"},
	}
}

func browserEngine(p Policy, pages ...*browsertest.Page) (*Engine, *browsertest.Opener) {
	p.Mode = config.ModeBrowser
	opener := &browsertest.Opener{Pages: pages}
	return NewEngine(p, opener, secrets.Static{"FORM_PW": "hunter2", "WORKDAY_PASSWORD": "s3cret"}, nil, nil), opener
}

func submitGeneric(t *testing.T, e *Engine) *Outcome {
	t.Helper()
	out, err := e.Submit(context.Background(), Request{URL: genericURL, Fields: genericFields(), AutomationAllowed: true})
	require.NoError(t, err)
	return out
}

func TestGeneric_DryRunFillsWithoutClicking(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusDryRunOK, out.Status)
	assert.Equal(t, 5, out.FilledCount)
	assert.Equal(t, 1, out.Attempts)

	v, _ := page.Filled(`input[id="email"]`)
	assert.Equal(t, "sam@example.com", v)
	v, _ = page.Filled(`select[id="country"]`)
	assert.Equal(t, "United States", v)
	v, _ = page.Filled(`input[id="terms"]`)
	assert.Equal(t, "true", v)
	v, _ = page.Filled(`input[id="pw"]`)
	assert.Equal(t, "hunter2", v)
	_, trapped := page.Filled(`input[id="trap"]`)
	assert.False(t, trapped, "honeypot stays empty")
	assert.Equal(t, 2, page.Count("check"))
	assert.Zero(t, page.Count("click"))
	assert.True(t, page.Closed)
	assert.Equal(t, []string{genericURL}, page.Navigations)
}

func TestGeneric_RadioPicksMatchingChoice(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	e, _ := browserEngine(Policy{DryRun: true}, page)
	submitGeneric(t, e)

	yes := "html > body:nth-of-type(1) > form:nth-of-type(1) > fieldset:nth-of-type(1) > label:nth-of-type(1) > input:nth-of-type(1)"
	no := "html > body:nth-of-type(1) > form:nth-of-type(1) > fieldset:nth-of-type(1) > label:nth-of-type(2) > input:nth-of-type(1)"
	v, ok := page.Filled(yes)
	require.True(t, ok)
	assert.Equal(t, "true", v)
	_, ok = page.Filled(no)
	assert.False(t, ok)
}

func TestGeneric_RadioFollowsResolvedSentence(t *testing.T) {
	yes := "html > body:nth-of-type(1) > form:nth-of-type(1) > fieldset:nth-of-type(1) > label:nth-of-type(1) > input:nth-of-type(1)"
	no := "html > body:nth-of-type(1) > form:nth-of-type(1) > fieldset:nth-of-type(1) > label:nth-of-type(2) > input:nth-of-type(1)"
	tests := []struct {
		name    string
		answer  string
		checked string
		skipped string
	}{
		{"not authorized", notAuthorizedUS, no, yes},
		{"authorized without sponsorship", authorizedNoSponsorUS, yes, no},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewPage("", genericForm)
			e, _ := browserEngine(Policy{DryRun: true}, page)
			fields := genericFields()
			fields[2].Value = tt.answer

			out, err := e.Submit(context.Background(), Request{URL: genericURL, Fields: fields, AutomationAllowed: true})
			require.NoError(t, err)
			assert.Equal(t, StatusDryRunOK, out.Status)

			v, ok := page.Filled(tt.checked)
			require.True(t, ok)
			assert.Equal(t, "true", v)
			_, ok = page.Filled(tt.skipped)
			assert.False(t, ok)
		})
	}
}

func TestGeneric_SubmitOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		onClick func(p *browsertest.Page) error
		status  string
		reason  string
		clicked bool
	}{
		{
			name:   "final submit disabled",
			policy: Policy{},
			status: StatusFailed, reason: ReasonFinalSubmitDisabled,
		},
		{
			name:   "confirmation marker",
			policy: Policy{AllowFinalSubmit: true},
			onClick: func(p *browsertest.Page) error {
				p.SetHTML("<h1>Thank you for applying!</h1>")
				return nil
			},
			status: StatusSubmitted, clicked: true,
		},
		{
			name:   "url change",
			policy: Policy{AllowFinalSubmit: true},
			onClick: func(p *browsertest.Page) error {
				p.Address = genericURL + "/received"
				return nil
			},
			status: StatusSubmitted, clicked: true,
		},
		{
			name:   "no confirmation",
			policy: Policy{AllowFinalSubmit: true},
			status: StatusFailed, reason: ReasonNotConfirmed, clicked: true,
		},
		{
			name:   "captcha after submit",
			policy: Policy{AllowFinalSubmit: true},
			onClick: func(p *browsertest.Page) error {
				p.SetHTML(`<div class="g-recaptcha">Please verify you are human</div>`)
				return nil
			},
			status: StatusBlocked, reason: ReasonCaptchaAfterSubmit, clicked: true,
		},
		{
			name:   "click fails",
			policy: Policy{AllowFinalSubmit: true},
			onClick: func(*browsertest.Page) error {
				return errors.New("element detached")
			},
			status: StatusFailed, reason: ReasonSubmitClickFailed, clicked: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := browsertest.NewPage("", genericForm)
			if tt.onClick != nil {
				page.OnClick[submitSel] = func() error { return tt.onClick(page) }
			}
			e, _ := browserEngine(tt.policy, page)

			out := submitGeneric(t, e)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, tt.clicked, page.Clicked(submitSel))
			assert.False(t, page.Clicked(`button[id="back"]`))
		})
	}
}

func TestGeneric_RetriesUnconfirmedSubmission(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	clicks := 0
	page.OnClick[submitSel] = func() error {
		clicks++
		if clicks == 2 {
			page.SetHTML("Application submitted")
		}
		return nil
	}
	e, opener := browserEngine(Policy{AllowFinalSubmit: true, Retries: 2}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusSubmitted, out.Status)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 2, opener.Opened, "one session per attempt")
}

func TestGeneric_CaptchaBeforeFill(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	page.AddFrame("https://www.google.com/recaptcha/api2/anchor", "<div></div>")
	e, _ := browserEngine(Policy{AllowFinalSubmit: true, Retries: 3}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusBlocked, out.Status)
	assert.Equal(t, ReasonCaptchaBeforeFill, out.Reason)
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, page.Count("fill"))
}

func TestGeneric_SubmitButtonNotFound(t *testing.T) {
	page := browsertest.NewPage("", `<label for="email">Email</label><input id="email"><button id="x">Cancel</button>`)
	e, _ := browserEngine(Policy{AllowFinalSubmit: true}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ReasonSubmitNotFound, out.Reason)
	assert.False(t, page.Clicked(`button[id="x"]`))
}

func TestGeneric_NavigationFailure(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	page.OnNavigate = func(string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") }
	e, _ := browserEngine(Policy{DryRun: true, Retries: 1}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ReasonNavigationFailed, out.Reason)
	assert.Equal(t, 2, out.Attempts)
}

func TestGeneric_FillsFrameControls(t *testing.T) {
	page := browsertest.NewPage("", "<p>Apply below</p>")
	frame := page.AddFrame("https://forms.example.com/embed", `<label for="email">Email</label><input id="email">`)
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out := submitGeneric(t, e)
	assert.Equal(t, StatusDryRunOK, out.Status)
	assert.Equal(t, 1, out.FilledCount)
	v, ok := frame.Filled(`input[id="email"]`)
	require.True(t, ok)
	assert.Equal(t, "sam@example.com", v)
}

func TestGeneric_MissingSecretIsNotFilled(t *testing.T) {
	page := browsertest.NewPage("", genericForm)
	e := NewEngine(Policy{Mode: config.ModeBrowser, DryRun: true}, &browsertest.Opener{Pages: []*browsertest.Page{page}}, secrets.Static{}, nil, nil)

	out, err := e.Submit(context.Background(), Request{URL: genericURL, Fields: genericFields(), AutomationAllowed: true})
	require.NoError(t, err)
	assert.Equal(t, 4, out.FilledCount)
	_, ok := page.Filled(`input[id="pw"]`)
	assert.False(t, ok)
}
