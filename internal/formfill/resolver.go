// Package formfill resolves a value for every entry of a job's field catalog. Each resolved
// field records the rule that produced its value so submissions can be audited.
package formfill

import (
	"sort"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// RedactedValue stands in for a secret that is substituted only at fill time.
const RedactedValue = "<redacted>"

// DefaultPasswordEnv names the secret used for password fields when none is configured.
const DefaultPasswordEnv = "WORKDAY_PASSWORD"

// Provenance tags.
const (
	SourceHoneypot          = "honeypot"
	SourceSecretPrefix      = "secret.env."
	SourceResumePDF         = "resolved.resume_pdf"
	SourceTranscriptPDF     = "resolved.transcript_pdf"
	SourceMissingFile       = "missing.required_file"
	SourceProfileEmail      = "profile.personal_info.email"
	SourceWorkAuthorization = "general_meta.work_authorization"
	SourceUniversityYear    = "general_meta.university_year"
	SourceGraduationYear    = "general_meta.graduation_year"
	SourceGPA               = "general_meta.gpa"
	SourceAvailability      = "general_meta.availability_terms"
	SourceDraftPairs        = "draft.question_answer_pairs"
	SourceDraftShortAnswers = "draft.short_answers"
	SourceFallbackRequired  = "fallback.required"
	SourceFallbackEmpty     = "fallback.empty"
)

var honeypotPhrases = []string{"robots only", "leave this field blank", "leave blank", "do not fill"}

// Resolver maps catalog entries to fill values.
type Resolver struct {
	assets      Assets
	passwordEnv string
	log         *logging.Logger
}

// NewResolver returns a Resolver uploading from assets and substituting passwords from the
// secret named passwordEnv.
func NewResolver(assets Assets, passwordEnv string, log *logging.Logger) *Resolver {
	if passwordEnv == "" {
		passwordEnv = DefaultPasswordEnv
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Resolver{assets: assets, passwordEnv: passwordEnv, log: log}
}

// Resolve returns one resolved field per catalog entry, in catalog order.
func (r *Resolver) Resolve(fields []types.FormField, drafts *types.Drafts, profile *types.Profile) []types.ResolvedField {
	out := make([]types.ResolvedField, 0, len(fields))
	counts := map[string]int{}
	for _, f := range fields {
		rf := r.ResolveField(f, drafts, profile)
		counts[rf.Source]++
		out = append(out, rf)
	}
	r.log.Debug("field payload resolved", "fields", len(out), "sources", counts)
	return out
}

// ResolveField applies the resolution rules to a single entry. The first rule that yields a
// value wins: honeypot, secret, file upload, profile metadata, drafts, fallback.
func (r *Resolver) ResolveField(f types.FormField, drafts *types.Drafts, profile *types.Profile) types.ResolvedField {
	rf := types.ResolvedField{
		FieldKey:  f.FieldKey,
		Label:     f.Label,
		FieldType: f.FieldType,
		Required:  f.Required,
		Metadata:  copyMeta(f.Metadata),
	}
	label := norm(f.Label)
	fieldType := strings.ToLower(f.FieldType)

	switch {
	case isHoneypot(label, strings.ToLower(f.MetaString("name"))):
		rf.Source = SourceHoneypot

	case fieldType == types.FieldTypePassword || strings.Contains(label, "password"):
		rf.Value = RedactedValue
		rf.RuntimeValueEnv = r.passwordEnv
		rf.Source = SourceSecretPrefix + r.passwordEnv
		rf.Metadata["sensitive"] = true

	case fieldType == types.FieldTypeFile || strings.EqualFold(f.MetaString("input_type"), types.FieldTypeFile):
		rf.Value, rf.Source = r.fileFor(label)
		if rf.Source == "" {
			rf.Source = fallbackSource(f.Required, SourceMissingFile)
		}
		rf.Metadata["sensitive"] = true

	default:
		value, source := metaAnswer(f.Label, profile)
		if value == "" {
			value, source = draftAnswer(f.Label, drafts)
		}
		if value == "" {
			source = fallbackSource(f.Required, SourceFallbackRequired)
			if f.Required {
				value = "N/A"
			}
		}
		rf.Value, rf.Source = value, source
	}
	return rf
}

func (r *Resolver) fileFor(label string) (string, string) {
	switch {
	case strings.Contains(label, "transcript"):
		if p := r.assets.Transcript(); p != "" {
			return p, SourceTranscriptPDF
		}
	case strings.Contains(label, "resume") || strings.Contains(label, "résumé") || containsWord(label, "cv"):
		if p := r.assets.Resume(); p != "" {
			return p, SourceResumePDF
		}
	}
	return "", ""
}

func isHoneypot(label, name string) bool {
	for _, phrase := range honeypotPhrases {
		if strings.Contains(label, phrase) {
			return true
		}
	}
	return name == "website" && strings.Contains(label, "robot")
}

func fallbackSource(required bool, whenRequired string) string {
	if required {
		return whenRequired
	}
	return SourceFallbackEmpty
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Redacted returns a copy of fields safe to persist or log: sensitive values are replaced by
// RedactedValue.
func Redacted(fields []types.ResolvedField) []types.ResolvedField {
	out := make([]types.ResolvedField, len(fields))
	for i, f := range fields {
		f.Metadata = copyMeta(f.Metadata)
		if f.Sensitive() && f.Value != "" {
			f.Value = RedactedValue
		}
		out[i] = f
	}
	return out
}
