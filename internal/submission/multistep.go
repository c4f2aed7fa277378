package submission

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/formcatalog"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	applyRoute         = "/apply"
	maxSurfaceLabelURL = 120
)

// flow is the state of one multi-step attempt: the tab currently holding the form plus any
// extra tabs that must be closed with it.
type flow struct {
	e     *Engine
	req   Request
	page  browser.Page
	tabs  []browser.Page
	steps []Step
}

func (f *flow) close() {
	for _, t := range f.tabs {
		_ = t.Close()
	}
}

func (f *flow) outcome(ctx context.Context, status, reason string) *Outcome {
	filled := 0
	for _, s := range f.steps {
		filled += s.FilledCount
	}
	return &Outcome{
		Status:      status,
		Reason:      reason,
		ResponseURL: currentURL(ctx, f.page, f.req.URL),
		FilledCount: filled,
		Steps:       f.steps,
	}
}

// multiStep walks a paginated application: reach the apply route, pass a login wall, then
// fill page after page until a final submit control shows up.
func (e *Engine) multiStep(ctx context.Context, req Request) (*Outcome, error) {
	root, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	f := &flow{e: e, req: req, page: root, tabs: []browser.Page{root}}
	defer f.close()

	if err := root.Navigate(ctx, req.URL); err != nil {
		e.log.Warn("navigation failed", "url", req.URL, "error", err)
		return failed(ReasonNavigationFailed, req.URL), nil
	}
	root.Settle(ctx)
	browser.DismissOverlays(ctx, root)
	f.reachApply(ctx)

	if captchaOnAny(ctx, f.page) {
		return f.outcome(ctx, StatusBlocked, ReasonCaptcha), nil
	}
	if out := f.login(ctx); out != nil {
		return out, nil
	}

	for idx := 0; idx < e.policy.MaxSteps; idx++ {
		if !strings.Contains(currentURL(ctx, f.page, ""), applyRoute) {
			f.reachApply(ctx)
		}
		if captchaOnAny(ctx, f.page) {
			return f.outcome(ctx, StatusBlocked, ReasonCaptcha), nil
		}

		surface, label, captured := bestSurface(ctx, f.page)
		filled, resolved := f.fillSurface(ctx, surface, captured)
		f.steps = append(f.steps, Step{
			Step:        strconv.Itoa(idx + 1),
			URL:         currentURL(ctx, f.page, req.URL),
			Surface:     label,
			FilledCount: filled,
			Fields:      transcriptFields(resolved),
		})

		candidates := distinct(f.page, surface)
		if target, sel := findButton(ctx, candidates, finalSubmitPatterns, finalSubmitSelectors); sel != "" {
			return f.submit(ctx, target, sel), nil
		}
		if len(captured) == 0 {
			out := f.outcome(ctx, StatusFailed, ReasonNoFields)
			out.Debug = f.debug(ctx, surface)
			return out, nil
		}

		target, sel := findButton(ctx, candidates, nextPatterns, nextSelectors)
		if sel == "" {
			out := f.outcome(ctx, StatusFailed, ReasonNextNotFound)
			out.Debug = f.debug(ctx, surface)
			return out, nil
		}
		if err := target.Click(ctx, sel); err != nil {
			e.log.Warn("next click failed", "step", idx+1, "selector", sel, "error", err)
			return f.outcome(ctx, StatusFailed, ReasonNextClickFailed), nil
		}
		f.page.Settle(ctx)
		browser.DismissOverlays(ctx, f.page)
	}
	return f.outcome(ctx, StatusFailed, ReasonMaxStepsExceeded), nil
}

// reachApply moves the flow onto the apply route: an apply control first, then a synthesized
// "<url>/apply" address.
func (f *flow) reachApply(ctx context.Context) {
	active, clicked, detail := formcatalog.TriggerApply(ctx, f.page)
	if active != f.page {
		f.tabs = append(f.tabs, active)
		f.page = active
	}
	f.e.log.Debug("apply trigger", "clicked", clicked, "detail", detail)

	cur := currentURL(ctx, f.page, f.req.URL)
	if !strings.Contains(cur, applyRoute) {
		target := applyURL(cur)
		if err := f.page.Navigate(ctx, target); err != nil {
			f.e.log.Debug("apply route navigation failed", "url", target, "error", err)
		} else {
			f.page.Settle(ctx)
		}
	}
	browser.DismissOverlays(ctx, f.page)
}

// login fills and submits a sign-in form when one is showing. It returns a non-nil outcome
// when the attempt must stop there.
func (f *flow) login(ctx context.Context) *Outcome {
	if !hasLoginWall(ctx, f.page) {
		if _, _, captured := bestSurface(ctx, f.page); len(captured) == 0 {
			formcatalog.OpenSignIn(ctx, f.page)
		}
	}
	if !hasLoginWall(ctx, f.page) {
		return nil
	}

	surface, label, captured := bestSurface(ctx, f.page)
	filled, resolved := f.fillSurface(ctx, surface, captured)
	f.steps = append(f.steps, Step{
		Step:        "login",
		URL:         currentURL(ctx, f.page, f.req.URL),
		Surface:     label,
		FilledCount: filled,
		Fields:      transcriptFields(resolved),
	})
	if f.e.policy.DryRun {
		return f.outcome(ctx, StatusDryRunOK, ReasonLoginWall)
	}

	target, sel := findButton(ctx, distinct(f.page, surface), signInPatterns, signInSelectors)
	if sel == "" {
		return f.outcome(ctx, StatusFailed, ReasonSignInNotFound)
	}
	if err := target.Click(ctx, sel); err != nil {
		f.e.log.Warn("sign-in click failed", "selector", sel, "error", err)
		return f.outcome(ctx, StatusFailed, ReasonSignInClickFailed)
	}
	f.page.Settle(ctx)
	browser.DismissOverlays(ctx, f.page)
	return nil
}

// submit honors dry-run and final-submit authorization before clicking the final control.
func (f *flow) submit(ctx context.Context, target browser.Surface, sel string) *Outcome {
	if f.e.policy.DryRun {
		return f.outcome(ctx, StatusDryRunReadyToSubmit, ReasonSubmitVisible)
	}
	if !f.e.policy.AllowFinalSubmit {
		return f.outcome(ctx, StatusFailed, ReasonFinalSubmitDisabled)
	}
	before := currentURL(ctx, f.page, f.req.URL)
	if err := target.Click(ctx, sel); err != nil {
		f.e.log.Warn("submit click failed", "selector", sel, "error", err)
		return f.outcome(ctx, StatusFailed, ReasonSubmitClickFailed)
	}
	f.page.Settle(ctx)
	out := f.outcome(ctx, StatusFailed, "")
	f.e.classify(ctx, f.page, before, out)
	return out
}

// fillSurface resolves the controls currently on surface and fills them there.
func (f *flow) fillSurface(ctx context.Context, surface browser.Surface, captured []formcatalog.Captured) (int, []types.ResolvedField) {
	platform := string(f.e.platformOf(f.req))
	fields := formcatalog.Normalize(platform, captured, nil)
	resolved := f.e.resolver.Resolve(fields, f.req.Drafts, f.req.Profile)
	return f.e.fillAll(ctx, []browser.Surface{surface}, resolved), resolved
}

func (f *flow) debug(ctx context.Context, surface browser.Surface) map[string][]string {
	out := map[string][]string{"page_buttons": buttonTexts(ctx, f.page), "surface_buttons": {}}
	if surface != browser.Surface(f.page) {
		out["surface_buttons"] = buttonTexts(ctx, surface)
	}
	return out
}

// bestSurface returns the document or frame holding the most controls. Ties go to the
// earlier surface, so the top document wins when nothing beats it.
func bestSurface(ctx context.Context, p browser.Page) (browser.Surface, string, []formcatalog.Captured) {
	var best browser.Surface = p
	label := "page"
	var bestControls []formcatalog.Captured

	for i, s := range browser.Surfaces(ctx, p) {
		doc, err := browser.Document(ctx, s)
		if err != nil {
			continue
		}
		frameURL := ""
		if i > 0 {
			frameURL, _ = s.URL(ctx)
		}
		var captured []formcatalog.Captured
		for _, c := range formcatalog.Controls(doc) {
			captured = append(captured, formcatalog.Captured{Control: c, Surface: s.Label(), FrameURL: frameURL})
		}
		if i == 0 {
			bestControls = captured
			continue
		}
		if len(captured) > len(bestControls) {
			best, bestControls = s, captured
			label = "frame:" + truncateRunes(frameURL, maxSurfaceLabelURL)
		}
	}
	return best, label, bestControls
}

// applyURL appends the apply route to raw's path, keeping its query.
func applyURL(raw string) string {
	base, query, hasQuery := strings.Cut(raw, "?")
	out := strings.TrimRight(base, "/") + applyRoute
	if hasQuery && query != "" {
		out += "?" + query
	}
	return out
}

func distinct(p browser.Page, s browser.Surface) []browser.Surface {
	if s == browser.Surface(p) {
		return []browser.Surface{p}
	}
	return []browser.Surface{p, s}
}

func truncateRunes(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
