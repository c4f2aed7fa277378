package formcatalog

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-autopilot/internal/browser"
)

const maxPerCandidate = 5

var (
	applyText         = regexp.MustCompile(`(?i)\bapply\b`)
	applyAntiPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bapply filters\b`),
		regexp.MustCompile(`(?i)\bfilter\b`),
		regexp.MustCompile(`(?i)\btime left to apply\b`),
		regexp.MustCompile(`(?i)\bend date\b`),
		regexp.MustCompile(`(?i)\bhours left to apply\b`),
	}
	signInText = regexp.MustCompile(`(?i)sign in|log in`)
)

type applyCandidate struct {
	desc     string
	selector string
	// textOnly keeps only elements whose text mentions apply.
	textOnly bool
}

// Apply candidates in priority order: explicit apply routes, then apply-labelled controls,
// then automation-id fallbacks.
var applyCandidates = []applyCandidate{
	{desc: "css:a[data-automation-id='adventureButton']", selector: "a[data-automation-id='adventureButton']"},
	{desc: "css:a[href*='/apply']", selector: "a[href*='/apply']"},
	{desc: "css:a[href*='apply']", selector: "a[href*='apply']"},
	{desc: "text:button", selector: "button", textOnly: true},
	{desc: "text:a", selector: "a", textOnly: true},
	{desc: "text:[role=button]", selector: "[role='button']", textOnly: true},
	{desc: "css:a[data-automation-id='apply']", selector: "a[data-automation-id='apply']"},
	{desc: "css:a[data-automation-id='applyNow']", selector: "a[data-automation-id='applyNow']"},
	{desc: "css:a[data-automation-id*='apply']", selector: "a[data-automation-id*='apply']"},
	{desc: "css:button[data-automation-id='apply']", selector: "button[data-automation-id='apply']"},
	{desc: "css:button[data-automation-id='applyNow']", selector: "button[data-automation-id='applyNow']"},
	{desc: "css:button[data-automation-id*='apply']", selector: "button[data-automation-id*='apply']"},
	{desc: "css:[role=button][data-automation-id*='apply']", selector: "[role='button'][data-automation-id*='apply']"},
}

// TriggerApply tries to reach the application form from a posting page. It prefers direct
// navigation to an apply route, then a click that changes the current tab, then a click that
// opens a new tab. It returns the page now holding the form (p itself or the new tab), whether
// an apply action happened, and a detail map for auditing.
func TriggerApply(ctx context.Context, p browser.Page) (browser.Page, bool, map[string]any) {
	doc, err := browser.Document(ctx, p)
	if err != nil {
		return p, false, map[string]any{"attempted": true, "error": err.Error()}
	}
	current, _ := p.URL(ctx)
	tried := map[string]bool{}

	for _, cand := range applyCandidates {
		nodes := doc.Find(cand.selector)
		seen := 0
		for i := 0; i < nodes.Length() && seen < maxPerCandidate; i++ {
			node := nodes.Eq(i)
			if IsHidden(node) {
				continue
			}
			text := browser.VisibleText(node)
			if cand.textOnly && !applyText.MatchString(text) {
				continue
			}
			seen++
			if matchesAny(applyAntiPatterns, text) {
				continue
			}
			sel := browser.CSSPath(node)
			if tried[sel] {
				continue
			}
			tried[sel] = true

			detail := map[string]any{"selector": cand.desc, "idx": seen - 1, "text": text, "popup": false}
			href := strings.TrimSpace(node.AttrOr("href", ""))
			if href != "" && strings.Contains(href, "/apply") && !strings.Contains(current, "/apply") {
				target := resolveHref(current, href)
				if err := p.Navigate(ctx, target); err == nil {
					p.Settle(ctx)
					detail["method"] = "goto"
					detail["href"] = target
					return p, true, detail
				}
			}

			tab, err := p.ClickNewTab(ctx, sel)
			switch {
			case err == nil:
				tab.Settle(ctx)
				detail["popup"] = true
				detail["method"] = "new_tab"
				return tab, true, detail
			case errors.Is(err, browser.ErrNoNewTab):
				p.Settle(ctx)
				detail["method"] = "click"
				return p, true, detail
			}
		}
	}
	return p, false, map[string]any{"attempted": true, "candidates": len(tried)}
}

// OpenSignIn clicks a sign-in control on p, if any. Best-effort.
func OpenSignIn(ctx context.Context, p browser.Page) bool {
	doc, err := browser.Document(ctx, p)
	if err != nil {
		return false
	}
	if doc.Find("button[data-automation-id='utilityButtonSignIn']").Length() > 0 {
		if p.Click(ctx, "button[data-automation-id='utilityButtonSignIn']") == nil {
			p.Settle(ctx)
			return true
		}
	}
	clicked := false
	doc.Find("button, [role='button']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !signInText.MatchString(browser.VisibleText(s)) {
			return true
		}
		clicked = p.Click(ctx, browser.CSSPath(s)) == nil
		return !clicked
	})
	if clicked {
		p.Settle(ctx)
	}
	return clicked
}

// CountControls returns the interactive controls across the page and its frames.
func CountControls(ctx context.Context, p browser.Page) int {
	n := 0
	for _, s := range browser.Surfaces(ctx, p) {
		doc, err := browser.Document(ctx, s)
		if err != nil {
			continue
		}
		n += len(Controls(doc))
	}
	return n
}

func resolveHref(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
