package browser

import (
	"context"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var overlaySelectors = []string{
	"#onetrust-accept-btn-handler",
	"button#accept-recommended-btn-handler",
	"button[data-testid='cookie-accept']",
	"button[aria-label='Accept cookies']",
	".cc-allow",
	"#truste-consent-button",
	"button[data-automation-id='legalNoticeAcceptButton']",
}

var overlayText = regexp.MustCompile(`(?i)^\s*(accept( all)?( cookies)?|i agree|agree|allow all|got it|ok)\s*$`)

// DismissOverlays clicks consent or cookie banners on the top document. Best-effort:
// known selectors first, then buttons whose text matches a consent pattern.
func DismissOverlays(ctx context.Context, p Page) bool {
	doc, err := Document(ctx, p)
	if err != nil {
		return false
	}
	for _, sel := range overlaySelectors {
		if doc.Find(sel).Length() == 0 {
			continue
		}
		if p.Click(ctx, sel) == nil {
			p.Settle(ctx)
			return true
		}
	}

	dismissed := false
	doc.Find("button, [role='button'], a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !overlayText.MatchString(VisibleText(s)) {
			return true
		}
		if p.Click(ctx, CSSPath(s)) == nil {
			dismissed = true
			return false
		}
		return true
	})
	if dismissed {
		p.Settle(ctx)
	}
	return dismissed
}

// RenderHTML opens url in a fresh tab and returns the rendered document.
func RenderHTML(ctx context.Context, o Opener, url string) (string, error) {
	p, err := o.Open(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = p.Close() }()

	if err := p.Navigate(ctx, url); err != nil {
		return "", err
	}
	p.Settle(ctx)
	DismissOverlays(ctx, p)
	return p.HTML(ctx)
}
