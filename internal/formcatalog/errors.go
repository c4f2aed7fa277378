// Package formcatalog discovers the fields of a job's application form and stores them as
// the job's field catalog.
package formcatalog

import "fmt"

// FetchError represents a failure to load or walk an application page
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("form fetch error: %s (%s): %v", e.Message, e.URL, e.Cause)
	}
	return fmt.Sprintf("form fetch error: %s (%s)", e.Message, e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}
