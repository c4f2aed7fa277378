package formcatalog

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Target identifies a control on a live surface.
type Target struct {
	ID        string
	Name      string
	AriaLabel string
	Label     string
}

// TargetOf builds a Target from catalog metadata and a label.
func TargetOf(meta map[string]any, label string) Target {
	str := func(k string) string {
		v, _ := meta[k].(string)
		return strings.TrimSpace(v)
	}
	return Target{ID: str("id"), Name: str("name"), AriaLabel: str("aria_label"), Label: strings.TrimSpace(label)}
}

// Locate returns the controls in doc matching t, trying id, then name, then aria-label, then
// label text. A radio group located by name yields every member.
func Locate(doc *goquery.Document, t Target) []Control {
	return match(Controls(doc), t)
}

func match(controls []Control, t Target) []Control {
	rules := []func(Control) bool{
		func(c Control) bool { return t.ID != "" && c.ID == t.ID },
		func(c Control) bool { return t.Name != "" && c.Name == t.Name },
		func(c Control) bool { return t.AriaLabel != "" && strings.EqualFold(c.AriaLabel, t.AriaLabel) },
		func(c Control) bool {
			return t.Label != "" && (strings.EqualFold(c.Label, t.Label) || strings.EqualFold(c.Group, t.Label))
		},
	}
	for _, rule := range rules {
		var out []Control
		for _, c := range controls {
			if rule(c) {
				out = append(out, c)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
