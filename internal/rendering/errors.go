package rendering

import "fmt"

// TemplateError reports a template that could not be loaded, parsed or executed.
type TemplateError struct {
	Name    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("template %s: %s", e.Name, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// RenderError reports input that cannot be rendered.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return "render error: " + e.Message
}
