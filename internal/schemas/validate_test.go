package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validProfile = `{
	"personal_info": {"name": "Ada Lovelace", "email": "ada@example.com"},
	"experience": [{"company": "Analytical Engines", "title": "Engineer"}],
	"general_meta": {"availability_terms": ["Summer 2026"]}
}`

func TestValidateProfile(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantError bool
	}{
		{"valid profile", validProfile, false},
		{"missing personal info", `{"skills": ["go"]}`, true},
		{"wrong type", `{"personal_info": {"name": "A", "email": "a@b.c"}, "skills": "go"}`, true},
		{"experience without title", `{"personal_info": {"name": "A", "email": "a@b.c"}, "experience": [{"company": "X"}]}`, true},
		{"negative company cap", `{"personal_info": {"name": "A", "email": "a@b.c"}, "internship_preferences": {"max_applications_per_company": -1}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProfile([]byte(tt.doc))
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Errors)
		})
	}
}

func TestValidateStorageState(t *testing.T) {
	valid := `{
		"cookies": [{"name": "wd-session", "value": "abc", "domain": ".myworkdayjobs.com", "path": "/", "secure": true, "sameSite": "Lax"}],
		"origins": [{"origin": "https://acme.wd5.myworkdayjobs.com", "localStorage": [{"name": "k", "value": "v"}]}]
	}`
	assert.NoError(t, ValidateStorageState([]byte(valid)))

	err := ValidateStorageState([]byte(`{"origins": []}`))
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "(root)", vErr.Errors[0].Field)

	err = ValidateStorageState([]byte(`{"cookies": [{"name": "a", "value": "b", "domain": "x", "sameSite": "Sometimes"}]}`))
	assert.Error(t, err)
}

func TestValidateJSONString_MalformedDocument(t *testing.T) {
	err := ValidateJSONString(`{"type": "object"}`, `{ invalid json }`)
	require.Error(t, err)
	var loadErr *SchemaLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestValidateJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(validProfile), 0644))

	assert.NoError(t, ValidateJSONFile(profileSchema, path))

	err := ValidateJSONFile(profileSchema, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "personal_info", Message: "is required"}}}
	assert.Contains(t, err.Error(), "1. personal_info: is required")
}
