// Package profile loads the applicant's ground-truth profile from YAML or JSON.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/schemas"
	"github.com/jonathan/apply-autopilot/internal/types"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a profile file. The format follows the extension:
// .yaml/.yml are YAML, anything else is JSON.
func Load(path string) (*types.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseYAML decodes a YAML profile, validating it against the profile schema.
func ParseYAML(data []byte) (*types.Profile, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert profile YAML: %w", err)
	}
	return ParseJSON(asJSON)
}

// ParseJSON decodes a JSON profile, validating it against the profile schema.
func ParseJSON(data []byte) (*types.Profile, error) {
	if err := schemas.ValidateProfile(data); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	var p types.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return &p, nil
}

// CompanyCap returns the per-company application cap, preferring the profile's setting.
func CompanyCap(p *types.Profile, fallback int) int {
	if p != nil && p.InternshipPreferences.MaxApplicationsPerCompany != nil {
		return *p.InternshipPreferences.MaxApplicationsPerCompany
	}
	return fallback
}
