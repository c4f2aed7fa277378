package formcatalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/parsing"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	maxKeyLen        = 255
	maxLabelLen      = 512
	maxTypeLen       = 50
	maxScriptPrompts = 30
)

var (
	nonKeyChars    = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	promptKeywords = map[string]bool{
		"question": true, "questiontext": true, "question_text": true,
		"label": true, "prompt": true, "name": true, "title": true,
	}
)

// Captured is a control plus the surface it was found on.
type Captured struct {
	Control
	Surface  string
	FrameURL string
}

// Capture is the raw result of walking a rendered application page.
type Capture struct {
	FinalURL     string
	Title        string
	Fields       []Captured
	Scripts      []Script
	ApplyClicked bool
	ApplyDetail  map[string]any
}

// normalizeKey maps v to lower snake case, capped at 255 characters. Empty input yields "field".
func normalizeKey(v string) string {
	key := strings.ToLower(strings.Trim(nonKeyChars.ReplaceAllString(v, "_"), "_"))
	if key == "" {
		return "field"
	}
	return truncate(key, maxKeyLen)
}

// Prompts returns up to 30 distinct question-like strings from a JSON payload. Strings count when
// their key names a prompt or when they sit under a question or label key.
func Prompts(raw string) []string {
	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	parsing.WalkJSONStrings(data, func(key, parent, value string) {
		if len(out) >= maxScriptPrompts {
			return
		}
		text := parsing.CollapseSpace(value)
		if text == "" {
			return
		}
		k, p := normalizeKey(key), normalizeKey(parent)
		if !promptKeywords[k] && !strings.Contains(k, "question") && !strings.Contains(k, "label") &&
			(parent == "" || !(strings.Contains(p, "question") || strings.Contains(p, "label"))) {
			return
		}
		lower := strings.ToLower(text)
		if seen[lower] {
			return
		}
		seen[lower] = true
		out = append(out, text)
	})
	return out
}

// Normalize turns captured controls and scripts into catalog entries. Entries are deduplicated
// by generated key, first seen wins; radio and checkbox groups sharing a key collect their
// choices as options.
func Normalize(platform string, fields []Captured, scripts []Script) []types.FormField {
	var out []types.FormField
	index := map[string]int{}

	add := func(f types.FormField) {
		if i, ok := index[f.FieldKey]; ok {
			mergeChoice(&out[i], f)
			return
		}
		index[f.FieldKey] = len(out)
		out = append(out, f)
	}

	for i, c := range fields {
		add(fieldEntry(platform, i, c))
	}
	for i, s := range scripts {
		prompts := Prompts(s.Text)
		if len(prompts) == 0 {
			continue
		}
		add(types.FormField{
			FieldKey:  fmt.Sprintf("script_%s_%d", normalizeKey(s.Source), i+1),
			Label:     fmt.Sprintf("Structured script (%s)", s.Source),
			FieldType: types.FieldTypeScriptJSON,
			Platform:  platform,
			Metadata: map[string]any{
				"source":            s.Source,
				"prompt_candidates": prompts,
			},
		})
	}
	return out
}

func fieldEntry(platform string, idx int, c Captured) types.FormField {
	keySource := firstNonEmpty(c.Name, c.ID, c.AriaLabel, c.Label)
	if keySource == "" {
		keySource = fmt.Sprintf("field_%d", idx+1)
	}
	label := firstNonEmpty(c.Label, c.AriaLabel, c.Placeholder, c.Name, c.ID)
	if label == "" {
		label = fmt.Sprintf("Field %d", idx+1)
	}
	typ := normalizeKey(firstNonEmpty(c.Type, c.Tag))

	meta := map[string]any{
		"tag":         c.Tag,
		"name":        c.Name,
		"id":          c.ID,
		"placeholder": c.Placeholder,
		"aria_label":  c.AriaLabel,
		"options":     append([]string{}, c.Options...),
		"selector":    c.Selector,
		"surface":     c.Surface,
	}
	if c.FrameURL != "" {
		meta["frame_url"] = c.FrameURL
	}
	if isChoice(typ) {
		opts := []string{}
		if opt := firstNonEmpty(c.Label, c.Value); opt != "" {
			opts = append(opts, opt)
		}
		meta["options"] = opts
		if c.Group != "" {
			label = c.Group
		}
	}

	return types.FormField{
		FieldKey:  "form_" + normalizeKey(keySource),
		Label:     truncate(label, maxLabelLen),
		FieldType: truncate(typ, maxTypeLen),
		Required:  c.Required,
		Platform:  platform,
		Metadata:  meta,
	}
}

func mergeChoice(dst *types.FormField, src types.FormField) {
	if !isChoice(dst.FieldType) || dst.FieldType != src.FieldType {
		return
	}
	opts := dst.MetaStrings("options")
	for _, o := range src.MetaStrings("options") {
		if o != "" && !contains(opts, o) {
			opts = append(opts, o)
		}
	}
	dst.Metadata["options"] = opts
	dst.Required = dst.Required || src.Required
}

func isChoice(typ string) bool {
	return typ == types.FieldTypeRadio || typ == types.FieldTypeCheckbox
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
