package submission

import (
	"time"

	"github.com/jonathan/apply-autopilot/internal/config"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Outcome statuses. The set is closed.
const (
	StatusSubmitted           = "submitted"
	StatusBlocked             = "blocked"
	StatusFailed              = "failed"
	StatusDryRunOK            = "dry_run_ok"
	StatusDryRunReadyToSubmit = "dry_run_ready_to_submit"
)

// Outcome reasons.
const (
	ReasonNotAttempted        = "not_attempted"
	ReasonNavigationFailed    = "navigation_failed"
	ReasonFinalSubmitDisabled = "final_submit_disabled"
	ReasonSubmitNotFound      = "submit_button_not_found"
	ReasonSubmitClickFailed   = "submit_click_failed"
	ReasonNotConfirmed        = "submission_confirmation_not_detected"
	ReasonCaptchaBeforeFill   = "captcha_detected_before_fill"
	ReasonCaptcha             = "captcha_detected"
	ReasonCaptchaAfterSubmit  = "captcha_detected_after_submit"
	ReasonMockCaptcha         = "mock_captcha_pattern"
	ReasonMockDoesNotSubmit   = "mock_mode_does_not_submit"
	ReasonLoginWall           = "login_wall_detected"
	ReasonSignInNotFound      = "sign_in_button_not_found"
	ReasonSignInClickFailed   = "sign_in_click_failed"
	ReasonSubmitVisible       = "submit_visible"
	ReasonNoFields            = "no_interactive_fields_detected"
	ReasonNextNotFound        = "next_button_not_found"
	ReasonNextClickFailed     = "next_click_failed"
	ReasonMaxStepsExceeded    = "max_steps_exceeded"
)

const (
	defaultMaxSteps = 12
	defaultTimeout  = 120 * time.Second
	defaultWait     = 2 * time.Second
)

// Policy is the configuration bundle every attempt runs under.
type Policy struct {
	Mode             string
	Retries          int
	DryRun           bool
	StorageStatePath string
	Timeout          time.Duration
	Wait             time.Duration
	Headless         bool
	AllowFinalSubmit bool
	MaxSteps         int
}

// PolicyFromConfig converts the configured submission options.
func PolicyFromConfig(c config.SubmissionConfig) Policy {
	return Policy{
		Mode:             c.Mode,
		Retries:          c.Retries,
		DryRun:           c.DryRun,
		StorageStatePath: c.StorageStatePath,
		Timeout:          time.Duration(c.TimeoutMS) * time.Millisecond,
		Wait:             time.Duration(c.WaitMS) * time.Millisecond,
		Headless:         c.Headless,
		AllowFinalSubmit: c.AllowFinalSubmit,
		MaxSteps:         c.MaxSteps,
	}
}

// DefaultPolicy is the safe default: mock mode, dry run, final submit disabled.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Submission)
}

func (p Policy) withDefaults() Policy {
	if p.Mode == "" {
		p.Mode = config.ModeMock
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.MaxSteps <= 0 {
		p.MaxSteps = defaultMaxSteps
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.Wait <= 0 {
		p.Wait = defaultWait
	}
	return p
}

// Terminal reports whether the retry wrapper stops on status.
func Terminal(status string) bool {
	switch status {
	case StatusSubmitted, StatusBlocked, StatusDryRunOK, StatusDryRunReadyToSubmit:
		return true
	}
	return false
}

// StepField is one resolved field as recorded in a step transcript.
type StepField struct {
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Value    string `json:"value"`
	Source   string `json:"source"`
}

// Step records what one page of a multi-step flow looked like and what was filled.
type Step struct {
	Step        string      `json:"step"`
	URL         string      `json:"url"`
	Surface     string      `json:"surface"`
	FilledCount int         `json:"filled_count"`
	Fields      []StepField `json:"fields"`
}

// Outcome is the typed result of a submission.
type Outcome struct {
	Status      string              `json:"status"`
	Reason      string              `json:"reason,omitempty"`
	ResponseURL string              `json:"response_url,omitempty"`
	FilledCount int                 `json:"filled_count"`
	Attempts    int                 `json:"attempts"`
	Steps       []Step              `json:"steps,omitempty"`
	Debug       map[string][]string `json:"debug,omitempty"`
}

// Payload renders the outcome for a SubmissionAttempt or audit record.
func (o *Outcome) Payload() map[string]any {
	out := map[string]any{
		"status":       o.Status,
		"response_url": o.ResponseURL,
		"filled_count": o.FilledCount,
		"attempts":     o.Attempts,
	}
	if o.Reason != "" {
		out["reason"] = o.Reason
	}
	if len(o.Steps) > 0 {
		out["steps"] = o.Steps
	}
	if len(o.Debug) > 0 {
		out["debug"] = o.Debug
	}
	return out
}

func transcriptFields(fields []types.ResolvedField) []StepField {
	out := make([]StepField, 0, len(fields))
	for _, f := range fields {
		value := f.Value
		if f.Sensitive() {
			value = formfill.RedactedValue
		}
		out = append(out, StepField{Label: f.Label, Type: f.FieldType, Required: f.Required, Value: value, Source: f.Source})
	}
	return out
}
