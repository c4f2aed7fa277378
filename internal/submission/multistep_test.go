package submission

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/browser/browsertest"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	jobURL      = "https://acme.wd5.myworkdayjobs.com/en-US/careers/job/Engineer_R1"
	jobApplyURL = jobURL + "/apply"

	postingHTML = `<h1>Software Engineer Intern</h1>
<a id="apply" href="/en-US/careers/job/Engineer_R1/apply">Apply</a>`

	contactStep = `<h2>My Information</h2>
<label for="email">Email Address</label><input id="email" type="email">
<button id="next" data-automation-id="bottom-navigation-next-button">Save and Continue</button>`

	questionStep = `<h2>Application Questions</h2>
<label for="why">Why do you want to work at Acme?</label><textarea id="why"></textarea>
<button id="back">Back</button>
<button id="submit" data-automation-id="bottom-navigation-submit-button">Submit</button>`

	loginStep = `<label for="user">Email Address</label><input id="user" type="email">
<label for="pw">Password</label><input id="pw" type="password">
<button id="signin" data-automation-id="signInSubmitButton">Sign In</button>`
)

// workdayPage scripts a posting whose apply route shows first.
func workdayPage(first string) *browsertest.Page {
	p := browsertest.NewPage("", postingHTML)
	p.OnNavigate = func(u string) error {
		p.Address = u
		if strings.Contains(u, "/apply") {
			p.SetHTML(first)
		}
		return nil
	}
	return p
}

func workdayRequest() Request {
	return Request{
		URL:      jobURL,
		Platform: "workday",
		Profile:  &types.Profile{PersonalInfo: types.PersonalInfo{Email: "sam@example.com"}},
		Drafts: &types.Drafts{QuestionAnswerPairs: []types.QuestionAnswer{
			{Question: "Why do you want to work at Acme?", Answer: "To build reliable tools."},
		}},
		AutomationAllowed: true,
	}
}

func submitWorkday(t *testing.T, e *Engine) *Outcome {
	t.Helper()
	out, err := e.Submit(context.Background(), workdayRequest())
	require.NoError(t, err)
	return out
}

func TestMultiStep_DryRunStopsAtSubmit(t *testing.T) {
	page := workdayPage(contactStep)
	page.OnClick[`button[id="next"]`] = func() error {
		page.SetHTML(questionStep)
		return nil
	}
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, StatusDryRunReadyToSubmit, out.Status)
	assert.Equal(t, ReasonSubmitVisible, out.Reason)
	assert.Equal(t, jobApplyURL, out.ResponseURL)
	assert.Equal(t, 2, out.FilledCount)
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "1", out.Steps[0].Step)
	assert.Equal(t, "page", out.Steps[0].Surface)
	assert.Equal(t, "2", out.Steps[1].Step)
	assert.Equal(t, "To build reliable tools.", out.Steps[1].Fields[0].Value)
	assert.Equal(t, formfill.SourceDraftPairs, out.Steps[1].Fields[0].Source)

	assert.Equal(t, []string{jobURL, jobApplyURL}, page.Navigations)
	v, _ := page.Filled(`textarea[id="why"]`)
	assert.Equal(t, "To build reliable tools.", v)
	assert.False(t, page.Clicked(`button[id="submit"]`))
}

func TestMultiStep_FinalSubmit(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		after  string
		status string
		reason string
	}{
		{"not authorized", Policy{}, "", StatusFailed, ReasonFinalSubmitDisabled},
		{"confirmed", Policy{AllowFinalSubmit: true}, "<p>Application submitted. Thank you!</p>", StatusSubmitted, ""},
		{"unconfirmed", Policy{AllowFinalSubmit: true}, "<p>Something went wrong</p>", StatusFailed, ReasonNotConfirmed},
		{"captcha", Policy{AllowFinalSubmit: true}, "<p>Please complete the captcha</p>", StatusBlocked, ReasonCaptchaAfterSubmit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := workdayPage(questionStep)
			page.OnClick[`button[id="submit"]`] = func() error {
				page.SetHTML(tt.after)
				return nil
			}
			e, _ := browserEngine(tt.policy, page)

			out := submitWorkday(t, e)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.reason, out.Reason)
			require.Len(t, out.Steps, 1)
		})
	}
}

func TestMultiStep_LoginWall(t *testing.T) {
	t.Run("dry run records the login step", func(t *testing.T) {
		page := workdayPage(loginStep)
		e, _ := browserEngine(Policy{DryRun: true}, page)

		out := submitWorkday(t, e)
		assert.Equal(t, StatusDryRunOK, out.Status)
		assert.Equal(t, ReasonLoginWall, out.Reason)
		require.Len(t, out.Steps, 1)
		step := out.Steps[0]
		assert.Equal(t, "login", step.Step)
		assert.Equal(t, 2, step.FilledCount)
		for _, f := range step.Fields {
			assert.NotEqual(t, "s3cret", f.Value)
		}
		assert.Equal(t, formfill.RedactedValue, step.Fields[1].Value)
		v, _ := page.Filled(`input[id="pw"]`)
		assert.Equal(t, "s3cret", v)
		assert.False(t, page.Clicked(`button[id="signin"]`))
	})

	t.Run("signs in and continues", func(t *testing.T) {
		page := workdayPage(loginStep)
		page.OnClick[`button[id="signin"]`] = func() error {
			page.SetHTML(questionStep)
			return nil
		}
		e, _ := browserEngine(Policy{}, page)

		out := submitWorkday(t, e)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, ReasonFinalSubmitDisabled, out.Reason)
		require.Len(t, out.Steps, 2)
		assert.Equal(t, "login", out.Steps[0].Step)
		assert.True(t, page.Clicked(`button[id="signin"]`))
	})

	t.Run("no sign-in control", func(t *testing.T) {
		page := workdayPage(`<label for="pw">Password</label><input id="pw" type="password">`)
		e, _ := browserEngine(Policy{}, page)

		out := submitWorkday(t, e)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Equal(t, ReasonSignInNotFound, out.Reason)
	})
}

func TestMultiStep_OpensSignInWhenEmpty(t *testing.T) {
	page := workdayPage(`<button id="util" data-automation-id="utilityButtonSignIn">Sign In</button>`)
	page.OnClick[`button[data-automation-id='utilityButtonSignIn']`] = func() error {
		page.SetHTML(loginStep)
		return nil
	}
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, StatusDryRunOK, out.Status)
	assert.Equal(t, ReasonLoginWall, out.Reason)
}

func TestMultiStep_Failures(t *testing.T) {
	tests := []struct {
		name   string
		first  string
		policy Policy
		reason string
		steps  int
		debug  bool
	}{
		{"no fields", `<p>Loading</p><button id="help">Help</button>`, Policy{}, ReasonNoFields, 1, true},
		{"no next", `<label for="email">Email</label><input id="email">`, Policy{}, ReasonNextNotFound, 1, true},
		{"max steps", contactStep, Policy{MaxSteps: 3}, ReasonMaxStepsExceeded, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := workdayPage(tt.first)
			e, _ := browserEngine(tt.policy, page)

			out := submitWorkday(t, e)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Len(t, out.Steps, tt.steps)
			if tt.debug {
				require.Contains(t, out.Debug, "page_buttons")
				assert.Empty(t, out.Debug["surface_buttons"])
			}
		})
	}
}

func TestMultiStep_NoFieldsDebugListsButtons(t *testing.T) {
	page := workdayPage(`<p>Loading</p><button id="help">Help</button><button hidden>Ghost</button>`)
	e, _ := browserEngine(Policy{}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, []string{"Help"}, out.Debug["page_buttons"])
}

func TestMultiStep_NextClickFailed(t *testing.T) {
	page := workdayPage(contactStep)
	page.Fail[`button[id="next"]`] = assert.AnError
	e, _ := browserEngine(Policy{}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, ReasonNextClickFailed, out.Reason)
}

func TestMultiStep_CaptchaAborts(t *testing.T) {
	page := workdayPage(`<p>I am not a robot</p>` + contactStep)
	e, _ := browserEngine(Policy{Retries: 2}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, StatusBlocked, out.Status)
	assert.Equal(t, ReasonCaptcha, out.Reason)
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, page.Count("fill"))
}

func TestMultiStep_BestSurfaceIsFrame(t *testing.T) {
	page := workdayPage(`<label for="q">Search</label><input id="q">`)
	frameURL := "https://acme.wd5.myworkdayjobs.com/embedded/apply-form"
	frame := page.AddFrame(frameURL, `<label for="email">Email</label><input id="email">
<label for="why">Why do you want to work at Acme?</label><textarea id="why"></textarea>
<button id="submit">Submit Application</button>`)
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out := submitWorkday(t, e)
	assert.Equal(t, StatusDryRunReadyToSubmit, out.Status)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "frame:"+frameURL, out.Steps[0].Surface)
	assert.Equal(t, 2, out.Steps[0].FilledCount)
	v, _ := frame.Filled(`textarea[id="why"]`)
	assert.Equal(t, "To build reliable tools.", v)
	assert.Zero(t, page.Count("fill"))
}

func TestMultiStep_SynthesizesApplyRoute(t *testing.T) {
	page := workdayPage(contactStep)
	page.SetHTML("<h1>Software Engineer Intern</h1>")
	page.OnClick[`button[id="next"]`] = func() error {
		page.SetHTML(questionStep)
		return nil
	}
	e, _ := browserEngine(Policy{DryRun: true}, page)

	out, err := e.Submit(context.Background(), func() Request {
		r := workdayRequest()
		r.URL = jobURL + "?source=LinkedIn"
		return r
	}())
	require.NoError(t, err)
	assert.Equal(t, StatusDryRunReadyToSubmit, out.Status)
	assert.Equal(t, []string{jobURL + "?source=LinkedIn", jobApplyURL + "?source=LinkedIn"}, page.Navigations)
}

func TestApplyURL(t *testing.T) {
	tests := map[string]string{
		"https://x.wd1.myworkdayjobs.com/job/R1":         "https://x.wd1.myworkdayjobs.com/job/R1/apply",
		"https://x.wd1.myworkdayjobs.com/job/R1/":        "https://x.wd1.myworkdayjobs.com/job/R1/apply",
		"https://x.wd1.myworkdayjobs.com/job/R1?src=abc": "https://x.wd1.myworkdayjobs.com/job/R1/apply?src=abc",
		"https://x.wd1.myworkdayjobs.com/job/R1?":        "https://x.wd1.myworkdayjobs.com/job/R1/apply",
	}
	for in, want := range tests {
		assert.Equal(t, want, applyURL(in), in)
	}
}
