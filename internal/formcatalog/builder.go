package formcatalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Result is a normalized catalog for one application URL.
type Result struct {
	Platform      string            `json:"platform"`
	FinalURL      string            `json:"final_url"`
	Title         string            `json:"title"`
	Fields        []types.FormField `json:"fields"`
	RawFieldCount int               `json:"raw_field_count"`
	ScriptCount   int               `json:"script_count"`
	ApplyClicked  bool              `json:"apply_clicked"`
	ApplyDetail   map[string]any    `json:"apply_detail"`
}

// Fetcher builds a catalog for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url, platform string) (*Result, error)
}

// Builder walks application pages in a browser session.
type Builder struct {
	opener browser.Opener
	log    *logging.Logger
}

var _ Fetcher = (*Builder)(nil)

// NewBuilder returns a Builder opening pages through opener.
func NewBuilder(opener browser.Opener, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.Nop()
	}
	return &Builder{opener: opener, log: log}
}

// Fetch captures url and normalizes the result. An empty platform is detected from the URL.
// Session failures (missing snapshot, no browser) are returned wrapped so callers can test
// them with errors.Is.
func (b *Builder) Fetch(ctx context.Context, url, platform string) (*Result, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = string(fetch.DetectPlatform(url))
	}

	capture, err := b.Capture(ctx, url)
	if err != nil {
		return nil, err
	}
	fields := Normalize(platform, capture.Fields, capture.Scripts)
	b.log.Info("form catalog built",
		"platform", platform,
		"final_url", capture.FinalURL,
		"raw_fields", len(capture.Fields),
		"scripts", len(capture.Scripts),
		"catalog", len(fields),
		"apply_clicked", capture.ApplyClicked,
	)

	finalURL := capture.FinalURL
	if finalURL == "" {
		finalURL = url
	}
	return &Result{
		Platform:      platform,
		FinalURL:      finalURL,
		Title:         capture.Title,
		Fields:        fields,
		RawFieldCount: len(capture.Fields),
		ScriptCount:   len(capture.Scripts),
		ApplyClicked:  capture.ApplyClicked,
		ApplyDetail:   capture.ApplyDetail,
	}, nil
}

// Capture opens url, dismisses overlays, tries to reach the form and extracts every control
// and structured script from the document and its frames.
func (b *Builder) Capture(ctx context.Context, url string) (*Capture, error) {
	page, err := b.opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser session: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.Navigate(ctx, url); err != nil {
		return nil, &FetchError{URL: url, Message: "navigation failed", Cause: err}
	}
	page.Settle(ctx)
	browser.DismissOverlays(ctx, page)

	active, clicked, detail := TriggerApply(ctx, page)
	if active != page {
		defer func() { _ = active.Close() }()
	}

	if CountControls(ctx, active) == 0 {
		browser.DismissOverlays(ctx, active)
		if OpenSignIn(ctx, active) {
			detail["sign_in_opened"] = true
		}
	}

	capture := &Capture{ApplyClicked: clicked, ApplyDetail: detail}
	for i, s := range browser.Surfaces(ctx, active) {
		doc, err := browser.Document(ctx, s)
		if err != nil {
			b.log.Debug("surface unreadable", "surface", s.Label(), "error", err)
			continue
		}
		frameURL := ""
		if i == 0 {
			capture.FinalURL, _ = s.URL(ctx)
			capture.Title = browser.VisibleText(doc.Find("title").First())
		} else {
			frameURL, _ = s.URL(ctx)
		}
		for _, c := range Controls(doc) {
			capture.Fields = append(capture.Fields, Captured{Control: c, Surface: s.Label(), FrameURL: frameURL})
		}
		capture.Scripts = append(capture.Scripts, Scripts(doc)...)
	}
	return capture, nil
}
