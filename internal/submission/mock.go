package submission

import (
	"context"
	"strings"
)

// MockMode never touches a browser. It is the safe default.
type MockMode struct {
	DryRun bool
}

// Attempt implements Mode.
func (m MockMode) Attempt(_ context.Context, req Request) (*Outcome, error) {
	for _, f := range req.Fields {
		if strings.Contains(normText(f.Label), "captcha") {
			return blocked(ReasonMockCaptcha, req.URL), nil
		}
	}
	filled := 0
	for _, f := range req.Fields {
		if strings.TrimSpace(f.Value) != "" {
			filled++
		}
	}
	out := &Outcome{Status: StatusDryRunOK, ResponseURL: req.URL, FilledCount: filled}
	if !m.DryRun {
		out.Status, out.Reason = StatusFailed, ReasonMockDoesNotSubmit
	}
	return out, nil
}
