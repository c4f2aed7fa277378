package submission

import (
	"context"

	"github.com/jonathan/apply-autopilot/internal/browser"
)

// generic fills a single-page form from the precomputed payload and, when authorized,
// clicks its submit control.
func (e *Engine) generic(ctx context.Context, req Request) (*Outcome, error) {
	page, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, req.URL); err != nil {
		e.log.Warn("navigation failed", "url", req.URL, "error", err)
		return failed(ReasonNavigationFailed, req.URL), nil
	}
	page.Settle(ctx)

	if captchaOnAny(ctx, page) {
		return blocked(ReasonCaptchaBeforeFill, currentURL(ctx, page, req.URL)), nil
	}

	surfaces := browser.Surfaces(ctx, page)
	filled := e.fillAll(ctx, surfaces, req.Fields)
	before := currentURL(ctx, page, req.URL)
	out := &Outcome{ResponseURL: before, FilledCount: filled}

	if e.policy.DryRun {
		out.Status = StatusDryRunOK
		return out, nil
	}
	if !e.policy.AllowFinalSubmit {
		out.Status, out.Reason = StatusFailed, ReasonFinalSubmitDisabled
		return out, nil
	}

	surface, sel := findButton(ctx, browser.Surfaces(ctx, page), submitPatterns, nil)
	if sel == "" {
		out.Status, out.Reason = StatusFailed, ReasonSubmitNotFound
		return out, nil
	}
	if err := surface.Click(ctx, sel); err != nil {
		e.log.Warn("submit click failed", "url", before, "selector", sel, "error", err)
		out.Status, out.Reason = StatusFailed, ReasonSubmitClickFailed
		return out, nil
	}
	page.Settle(ctx)
	e.classify(ctx, page, before, out)
	return out, nil
}

// classify sets the post-submit status: a challenge blocks, a confirmation marker or a URL
// change counts as submitted.
func (e *Engine) classify(ctx context.Context, page browser.Page, before string, out *Outcome) {
	out.ResponseURL = currentURL(ctx, page, before)
	if captchaOnAny(ctx, page) {
		out.Status, out.Reason = StatusBlocked, ReasonCaptchaAfterSubmit
		return
	}
	ok := out.ResponseURL != before
	for _, s := range browser.Surfaces(ctx, page) {
		if ok {
			break
		}
		if html, err := s.HTML(ctx); err == nil {
			ok = confirmed(html)
		}
	}
	if ok {
		out.Status, out.Reason = StatusSubmitted, ""
		return
	}
	out.Status, out.Reason = StatusFailed, ReasonNotConfirmed
}
