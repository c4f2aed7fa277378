// Package submission drives application forms to an outcome: mock, single-page browser and
// multi-step browser modes behind a bounded retry wrapper.
package submission

import "fmt"

// Fatal error kinds. Everything else that goes wrong during an attempt becomes a failed Outcome.
const (
	KindSnapshotMissing    = "session_snapshot_missing"
	KindBrowserUnavailable = "browser_unavailable"
)

// FatalError is an infrastructure failure that no retry can fix.
type FatalError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("submission %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("submission %s: %s", e.Kind, e.Message)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// PolicyError is returned when configuration forbids the requested submission.
type PolicyError struct {
	Source  string
	Message string
}

func (e *PolicyError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("submission not allowed for source %q: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("submission not allowed: %s", e.Message)
}
