package submission

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/formcatalog"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/parsing"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	buttonSelector     = "button[type='submit'], input[type='submit'], button, [role='button']"
	maxDebugButtons    = 30
	maxDebugButtonText = 140
)

var (
	captchaPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bcaptcha\b`),
		regexp.MustCompile(`(?i)\bi am not a robot\b`),
		regexp.MustCompile(`(?i)\bverify you are human\b`),
	}
	captchaFrameHint = regexp.MustCompile(`(?i)recaptcha|hcaptcha|turnstile`)

	submitPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)submit application`),
		regexp.MustCompile(`(?i)submit`),
		regexp.MustCompile(`(?i)apply`),
	}
	finalSubmitPatterns = submitPatterns[:2]
	nextPatterns        = []*regexp.Regexp{
		regexp.MustCompile(`(?i)save and continue`),
		regexp.MustCompile(`(?i)continue`),
		regexp.MustCompile(`(?i)next`),
		regexp.MustCompile(`(?i)review`),
	}
	signInPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sign in`),
		regexp.MustCompile(`(?i)log in`),
	}

	finalSubmitSelectors = []string{
		"button[data-automation-id='bottom-navigation-submit-button']",
		"button[data-automation-id*='submit']",
	}
	nextSelectors = []string{
		"button[data-automation-id='bottom-navigation-next-button']",
		"button[data-automation-id*='next']",
		"button[data-automation-id*='continue']",
	}
	signInSelectors = []string{
		"button[data-automation-id='signInSubmitButton']",
		"button[type='submit']",
	}

	successMarkers = []string{
		"thank you",
		"application submitted",
		"submission received",
		"successfully submitted",
	}
)

// hasCaptcha reports whether html shows a challenge widget or challenge text.
func hasCaptcha(html string) bool {
	for _, p := range captchaPatterns {
		if p.MatchString(html) {
			return true
		}
	}
	return false
}

// captchaOnAny checks the page and every frame. A frame served from a challenge provider
// counts even when its document cannot be read.
func captchaOnAny(ctx context.Context, p browser.Page) bool {
	for i, s := range browser.Surfaces(ctx, p) {
		if i > 0 {
			if u, err := s.URL(ctx); err == nil && captchaFrameHint.MatchString(u) {
				return true
			}
		}
		html, err := s.HTML(ctx)
		if err != nil {
			continue
		}
		if hasCaptcha(html) {
			return true
		}
	}
	return false
}

func confirmed(html string) bool {
	lowered := strings.ToLower(html)
	for _, m := range successMarkers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

// buttonText is the text a user would read on a button-like element.
func buttonText(sel *goquery.Selection) string {
	return parsing.CollapseSpace(browser.VisibleText(sel) + " " + sel.AttrOr("value", ""))
}

// pickButton returns a selector for the best visible control on doc. Explicit selectors win;
// otherwise patterns are tried in priority order against every button-like element.
func pickButton(doc *goquery.Document, patterns []*regexp.Regexp, selectors []string) string {
	for _, sel := range selectors {
		found := ""
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if formcatalog.IsHidden(s) {
				return true
			}
			found = browser.CSSPath(s)
			return false
		})
		if found != "" {
			return found
		}
	}

	var nodes []*goquery.Selection
	var texts []string
	doc.Find(buttonSelector).Each(func(_ int, s *goquery.Selection) {
		if formcatalog.IsHidden(s) {
			return
		}
		if text := buttonText(s); text != "" {
			nodes = append(nodes, s)
			texts = append(texts, text)
		}
	})
	for _, p := range patterns {
		for i, text := range texts {
			if p.MatchString(text) {
				return browser.CSSPath(nodes[i])
			}
		}
	}
	return ""
}

// findButton looks on each surface in turn and returns the first hit.
func findButton(ctx context.Context, surfaces []browser.Surface, patterns []*regexp.Regexp, selectors []string) (browser.Surface, string) {
	for _, s := range surfaces {
		doc, err := browser.Document(ctx, s)
		if err != nil {
			continue
		}
		if sel := pickButton(doc, patterns, selectors); sel != "" {
			return s, sel
		}
	}
	return nil, ""
}

// buttonTexts lists distinct visible button labels on s for failure diagnostics.
func buttonTexts(ctx context.Context, s browser.Surface) []string {
	doc, err := browser.Document(ctx, s)
	if err != nil {
		return nil
	}
	out := []string{}
	seen := map[string]bool{}
	doc.Find(buttonSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= maxDebugButtons {
			return false
		}
		if formcatalog.IsHidden(sel) {
			return true
		}
		text := buttonText(sel)
		if r := []rune(text); len(r) > maxDebugButtonText {
			text = string(r[:maxDebugButtonText])
		}
		if text != "" && !seen[text] {
			seen[text] = true
			out = append(out, text)
		}
		return true
	})
	return out
}

// hasLoginWall reports whether any surface shows a visible password input.
func hasLoginWall(ctx context.Context, p browser.Page) bool {
	for _, s := range browser.Surfaces(ctx, p) {
		doc, err := browser.Document(ctx, s)
		if err != nil {
			continue
		}
		visible := false
		doc.Find("input[type='password']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			visible = !formcatalog.IsHidden(sel)
			return !visible
		})
		if visible {
			return true
		}
	}
	return false
}

// fillable reports whether a resolved field should be written to a live control.
func fillable(f types.ResolvedField) bool {
	if f.Source == formfill.SourceHoneypot || f.FieldType == types.FieldTypeScriptJSON {
		return false
	}
	return f.Value != "" || f.RuntimeValueEnv != ""
}

// fillOne writes one resolved value into the first control on s matching the field.
// It reports whether a write landed. Selector misses and action failures are not errors.
func (e *Engine) fillOne(ctx context.Context, s browser.Surface, doc *goquery.Document, f types.ResolvedField) bool {
	value := f.Value
	if f.RuntimeValueEnv != "" {
		secret, err := e.secrets.Lookup(f.RuntimeValueEnv)
		if err != nil {
			e.log.Warn("runtime secret unavailable", "field", f.FieldKey, "secret", f.RuntimeValueEnv)
			return false
		}
		value = secret
	}
	if value == "" {
		return false
	}

	controls := formcatalog.Locate(doc, formcatalog.TargetOf(f.Metadata, f.Label))
	if len(controls) == 0 {
		return false
	}
	c := controls[0]
	var err error
	switch {
	case c.Type == types.FieldTypeFile:
		err = s.Upload(ctx, c.Selector, value)
	case c.Type == types.FieldTypeRadio:
		target, ok := chooseControl(controls, value)
		if !ok {
			return false
		}
		err = s.SetChecked(ctx, target.Selector, true)
	case c.Type == types.FieldTypeCheckbox:
		if len(controls) == 1 {
			err = s.SetChecked(ctx, c.Selector, affirmative(value))
			break
		}
		target, ok := chooseControl(controls, value)
		if !ok {
			return false
		}
		err = s.SetChecked(ctx, target.Selector, true)
	case c.Type == types.FieldTypeSelect:
		err = s.SelectOption(ctx, c.Selector, chooseOption(c.Options, value))
	default:
		err = s.Fill(ctx, c.Selector, value)
	}
	if err != nil {
		e.log.Debug("fill failed", "field", f.FieldKey, "surface", s.Label(), "error", err)
		return false
	}
	return true
}

// fillAll writes every fillable field, looking first on the field's recorded surface and then
// on the rest. It returns how many writes landed.
func (e *Engine) fillAll(ctx context.Context, surfaces []browser.Surface, fields []types.ResolvedField) int {
	docs := make([]*goquery.Document, len(surfaces))
	for i, s := range surfaces {
		docs[i], _ = browser.Document(ctx, s)
	}
	filled := 0
	for _, f := range fields {
		if !fillable(f) {
			continue
		}
		for _, i := range surfaceOrder(surfaces, metaString(f.Metadata, "surface")) {
			if docs[i] == nil {
				continue
			}
			if e.fillOne(ctx, surfaces[i], docs[i], f) {
				filled++
				break
			}
		}
	}
	return filled
}

func surfaceOrder(surfaces []browser.Surface, preferred string) []int {
	order := make([]int, 0, len(surfaces))
	for i, s := range surfaces {
		if preferred != "" && s.Label() == preferred {
			order = append([]int{i}, order...)
			continue
		}
		order = append(order, i)
	}
	return order
}

// chooseControl picks the radio or checkbox in a group that carries value.
func chooseControl(controls []formcatalog.Control, value string) (formcatalog.Control, bool) {
	labels := make([]string, len(controls))
	values := make([]string, len(controls))
	for i, c := range controls {
		labels[i] = firstNonEmpty(c.Label, c.AriaLabel)
		values[i] = c.Value
	}
	if i := matchChoice(labels, values, value); i >= 0 {
		return controls[i], true
	}
	return formcatalog.Control{}, false
}

// chooseOption returns the option label that best matches value, or value itself.
func chooseOption(options []string, value string) string {
	if i := matchChoice(options, nil, value); i >= 0 {
		return options[i]
	}
	return value
}

// matchChoice returns the index of the choice that states answer, or -1. Tried in order:
// exact label, exact value attribute, the answer's leading yes/no against a label that is or
// starts with the same word (or an unlabelled control's value), then the longest label whose
// words appear contiguously in the answer or the reverse. Value attributes never match partially.
func matchChoice(labels, values []string, answer string) int {
	want := choiceTokens(answer)
	if len(want) == 0 {
		return -1
	}
	key := strings.Join(want, " ")
	for i, l := range labels {
		if strings.Join(choiceTokens(l), " ") == key {
			return i
		}
	}
	for i, v := range values {
		if strings.Join(choiceTokens(v), " ") == key {
			return i
		}
	}

	pol := polarity(want[0])
	if pol != "" {
		for i, l := range labels {
			if t := choiceTokens(l); len(t) == 1 && polarity(t[0]) == pol {
				return i
			}
		}
		for i, l := range labels {
			if t := choiceTokens(l); len(t) > 1 && polarity(t[0]) == pol {
				return i
			}
		}
		for i, l := range labels {
			if len(choiceTokens(l)) > 0 || i >= len(values) {
				continue
			}
			if t := choiceTokens(values[i]); len(t) == 1 && valuePolarity(t[0]) == pol {
				return i
			}
		}
	}

	best, bestLen := -1, 0
	for i, l := range labels {
		t := choiceTokens(l)
		if len(t) == 0 || len(strings.Join(t, "")) < 2 || isPolar(l) {
			continue
		}
		if lp := polarity(t[0]); lp != "" && pol != "" && lp != pol {
			continue
		}
		if containsTokens(want, t) || containsTokens(t, want) {
			if len(t) > bestLen {
				best, bestLen = i, len(t)
			}
		}
	}
	return best
}

var nonChoiceChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// choiceTokens lowercases s and splits it into letter and digit runs.
func choiceTokens(s string) []string {
	return strings.Fields(nonChoiceChars.ReplaceAllString(strings.ToLower(s), " "))
}

func polarity(token string) string {
	switch token {
	case "yes", "y", "true":
		return "yes"
	case "no", "n", "false":
		return "no"
	}
	return ""
}

func valuePolarity(token string) string {
	switch token {
	case "1", "on":
		return "yes"
	case "0", "off":
		return "no"
	}
	return polarity(token)
}

// isPolar reports whether label is a bare yes/no word.
func isPolar(label string) bool {
	t := choiceTokens(label)
	return len(t) == 1 && polarity(t[0]) != ""
}

// containsTokens reports whether needle occurs as a contiguous run in hay.
func containsTokens(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		match := true
		for j, tok := range needle {
			if hay[i+j] != tok {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func affirmative(value string) bool {
	switch normText(strings.TrimRight(value, ".")) {
	case "", "no", "false", "0", "n/a", "off":
		return false
	}
	return true
}

func normText(s string) string {
	return strings.ToLower(parsing.CollapseSpace(s))
}

func metaString(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
