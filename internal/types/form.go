package types

import (
	"time"

	"github.com/google/uuid"
)

// Field types recognized by the resolver and the automation engine.
const (
	FieldTypeText       = "text"
	FieldTypeTextarea   = "textarea"
	FieldTypeSelect     = "select"
	FieldTypeCheckbox   = "checkbox"
	FieldTypeRadio      = "radio"
	FieldTypeFile       = "file"
	FieldTypePassword   = "password"
	FieldTypeEmail      = "email"
	FieldTypeScriptJSON = "script_json"
)

// FormField is one catalog entry for a job: a discovered control or a structured prompt.
type FormField struct {
	JobID     uuid.UUID      `json:"job_id"`
	FieldKey  string         `json:"field_key"`
	Label     string         `json:"label"`
	FieldType string         `json:"field_type"`
	Required  bool           `json:"required"`
	Platform  string         `json:"platform"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MetaString returns a string metadata value or "".
func (f *FormField) MetaString(key string) string {
	if f.Metadata == nil {
		return ""
	}
	if v, ok := f.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetaStrings returns a list metadata value, accepting both []string and decoded JSON arrays.
func (f *FormField) MetaStrings(key string) []string {
	if f.Metadata == nil {
		return nil
	}
	switch v := f.Metadata[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// ResolvedField is a catalog entry plus the value chosen for it and where the value came from.
type ResolvedField struct {
	FieldKey        string         `json:"field_key"`
	Label           string         `json:"label"`
	FieldType       string         `json:"field_type"`
	Required        bool           `json:"required"`
	Value           string         `json:"value"`
	Source          string         `json:"source"`
	RuntimeValueEnv string         `json:"runtime_value_env,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Sensitive reports whether the value must be substituted at fill time and never logged.
func (r *ResolvedField) Sensitive() bool {
	if r.RuntimeValueEnv != "" {
		return true
	}
	if r.Metadata == nil {
		return false
	}
	v, _ := r.Metadata["sensitive"].(bool)
	return v
}
