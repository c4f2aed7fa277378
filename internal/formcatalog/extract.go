package formcatalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/parsing"
)

const (
	controlSelector = `input, select, textarea, [role="textbox"], [role="combobox"], ` +
		`[role="checkbox"], [role="radio"], [contenteditable="true"], [contenteditable=""]`
	hiddenSelector = `[hidden], [aria-hidden="true"], [style*="display:none"], [style*="display: none"], ` +
		`[style*="visibility:hidden"], [style*="visibility: hidden"]`

	maxScriptChars = 120000
)

// Input types that are never answers.
var skippedInputTypes = map[string]bool{
	"hidden": true, "submit": true, "button": true, "image": true, "reset": true,
}

// Control is one interactive element found in a surface's HTML. Group holds the question a
// radio or checkbox belongs to, taken from its fieldset legend or group label.
type Control struct {
	Tag         string
	Type        string
	ID          string
	Name        string
	Label       string
	Group       string
	Placeholder string
	AriaLabel   string
	Value       string
	Required    bool
	Options     []string
	Selector    string
}

// Script is an embedded structured-data payload.
type Script struct {
	Source string
	Text   string
}

// Controls returns every visible interactive element of doc in document order.
func Controls(doc *goquery.Document) []Control {
	var out []Control
	doc.Find(controlSelector).Each(func(_ int, s *goquery.Selection) {
		if c, ok := controlFrom(doc, s); ok {
			out = append(out, c)
		}
	})
	return out
}

func controlFrom(doc *goquery.Document, s *goquery.Selection) (Control, bool) {
	tag := goquery.NodeName(s)
	if IsHidden(s) {
		return Control{}, false
	}
	typ := controlType(s, tag)
	if skippedInputTypes[typ] {
		return Control{}, false
	}

	c := Control{
		Tag:         tag,
		Type:        typ,
		ID:          attr(s, "id"),
		Name:        attr(s, "name"),
		Placeholder: attr(s, "placeholder"),
		AriaLabel:   attr(s, "aria-label"),
		Value:       attr(s, "value"),
		Selector:    browser.CSSPath(s),
	}
	_, required := s.Attr("required")
	c.Required = required || strings.EqualFold(attr(s, "aria-required"), "true")

	label := labelFor(doc, s, c.ID)
	if strings.Contains(label, "*") {
		c.Required = true
		label = strings.TrimSpace(strings.Trim(label, "* "))
	}
	c.Label = label

	if typ == "radio" || typ == "checkbox" {
		c.Group = groupLabel(doc, s)
	}
	if tag == "select" {
		s.Find("option").Each(func(_ int, o *goquery.Selection) {
			if text := browser.VisibleText(o); text != "" {
				c.Options = append(c.Options, text)
			}
		})
	}
	return c, true
}

func controlType(s *goquery.Selection, tag string) string {
	switch tag {
	case "input":
		t := strings.ToLower(attr(s, "type"))
		if t == "" {
			return "text"
		}
		return t
	case "select", "textarea":
		return tag
	}
	switch strings.ToLower(attr(s, "role")) {
	case "textbox":
		return "text"
	case "combobox":
		return "select"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	}
	return "textarea"
}

// labelFor resolves the visible label: containing <label>, then label[for], then aria-labelledby.
func labelFor(doc *goquery.Document, s *goquery.Selection, id string) string {
	if lbl := s.Closest("label"); lbl.Length() > 0 {
		if text := labelText(lbl); text != "" {
			return text
		}
	}
	if id != "" {
		if text := labelText(doc.Find(fmt.Sprintf(`label[for="%s"]`, quote(id)))); text != "" {
			return text
		}
	}
	if ref := attr(s, "aria-labelledby"); ref != "" {
		var parts []string
		for _, part := range strings.Fields(ref) {
			if text := browser.VisibleText(doc.Find(fmt.Sprintf(`[id="%s"]`, quote(part)))); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func groupLabel(doc *goquery.Document, s *goquery.Selection) string {
	if fs := s.Closest("fieldset"); fs.Length() > 0 {
		if text := browser.VisibleText(fs.Find("legend").First()); text != "" {
			return strings.TrimSpace(strings.Trim(text, "* "))
		}
	}
	group := s.Parent().Closest(`[role="radiogroup"], [role="group"]`)
	if group.Length() == 0 {
		return ""
	}
	if aria := attr(group, "aria-label"); aria != "" {
		return aria
	}
	return labelFor(doc, group, "")
}

func labelText(lbl *goquery.Selection) string {
	if lbl.Length() == 0 {
		return ""
	}
	clone := lbl.First().Clone()
	clone.Find("select, textarea, option, script, style").Remove()
	return browser.VisibleText(clone)
}

// Scripts returns the JSON-LD and hydration payloads embedded in doc.
func Scripts(doc *goquery.Document) []Script {
	var out []Script
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		source := scriptSource(s)
		if source == "" {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		out = append(out, Script{Source: source, Text: truncate(text, maxScriptChars)})
	})
	return out
}

func scriptSource(s *goquery.Selection) string {
	if attr(s, "id") == "__NEXT_DATA__" {
		return "next_data"
	}
	switch strings.ToLower(attr(s, "type")) {
	case "application/ld+json":
		return "ld_json"
	case "application/json":
		if id := attr(s, "id"); id != "" {
			return normalizeKey(id)
		}
		return "json"
	}
	return ""
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return parsing.CollapseSpace(v)
}

func quote(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// IsHidden reports whether sel or one of its ancestors is hidden by attribute or inline style.
func IsHidden(sel *goquery.Selection) bool {
	return sel.Closest(hiddenSelector).Length() > 0
}
