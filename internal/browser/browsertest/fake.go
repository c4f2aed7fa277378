// Package browsertest provides scripted in-memory pages for exercising form automation
// without a browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/apply-autopilot/internal/browser"
)

// Action records one interaction performed on a fake surface.
type Action struct {
	Kind     string
	Selector string
	Value    string
}

// Surface is an in-memory document. Clicks run the matching OnClick hook, if any.
type Surface struct {
	Name    string
	Address string
	Body    string
	Actions []Action
	// OnClick maps a selector to a side effect run after the click is recorded.
	OnClick map[string]func() error
	// Fail makes every action on a selector return the given error.
	Fail map[string]error
}

// NewSurface returns a surface labelled name at url with the given HTML.
func NewSurface(name, url, html string) *Surface {
	return &Surface{Name: name, Address: url, Body: html, OnClick: map[string]func() error{}, Fail: map[string]error{}}
}

var _ browser.Surface = (*Surface)(nil)

func (s *Surface) Label() string { return s.Name }

func (s *Surface) URL(context.Context) (string, error) { return s.Address, nil }

func (s *Surface) HTML(context.Context) (string, error) { return s.Body, nil }

// SetHTML replaces the document body, typically from an OnClick hook.
func (s *Surface) SetHTML(html string) { s.Body = html }

func (s *Surface) Click(_ context.Context, sel string) error {
	if err := s.check("click", sel, ""); err != nil {
		return err
	}
	if hook := s.OnClick[sel]; hook != nil {
		return hook()
	}
	return nil
}

func (s *Surface) Fill(_ context.Context, sel, value string) error {
	return s.check("fill", sel, value)
}

func (s *Surface) SelectOption(_ context.Context, sel, value string) error {
	return s.check("select", sel, value)
}

func (s *Surface) SetChecked(_ context.Context, sel string, on bool) error {
	return s.check("check", sel, fmt.Sprint(on))
}

func (s *Surface) Upload(_ context.Context, sel, path string) error {
	return s.check("upload", sel, path)
}

// Filled returns the last value written to sel by fill, select, check or upload.
func (s *Surface) Filled(sel string) (string, bool) {
	for i := len(s.Actions) - 1; i >= 0; i-- {
		a := s.Actions[i]
		if a.Selector == sel && a.Kind != "click" {
			return a.Value, true
		}
	}
	return "", false
}

// Clicked reports whether sel was clicked.
func (s *Surface) Clicked(sel string) bool {
	for _, a := range s.Actions {
		if a.Kind == "click" && a.Selector == sel {
			return true
		}
	}
	return false
}

// Count returns how many actions of kind were recorded.
func (s *Surface) Count(kind string) int {
	n := 0
	for _, a := range s.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

func (s *Surface) check(kind, sel, value string) error {
	if err := s.Fail[sel]; err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.Body))
	if err != nil {
		return err
	}
	if doc.Find(sel).Length() == 0 {
		return fmt.Errorf("%s: no element matches %q", s.Name, sel)
	}
	s.Actions = append(s.Actions, Action{Kind: kind, Selector: sel, Value: value})
	return nil
}

// Page is a fake tab: a top Surface plus child frames.
type Page struct {
	*Surface
	FrameList   []*Surface
	Navigations []string
	// OnNavigate, when set, runs for every navigation and may rewrite the page.
	OnNavigate func(url string) error
	// NewTabs maps a selector to the page its click opens.
	NewTabs map[string]*Page
	Settles int
	Closed  bool
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a page whose top document has the given URL and HTML.
func NewPage(url, html string) *Page {
	return &Page{Surface: NewSurface("main", url, html), NewTabs: map[string]*Page{}}
}

// AddFrame attaches a child frame and returns it.
func (p *Page) AddFrame(url, html string) *Surface {
	f := NewSurface(fmt.Sprintf("frame[%d]", len(p.FrameList)), url, html)
	p.FrameList = append(p.FrameList, f)
	return f
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.Navigations = append(p.Navigations, url)
	if p.OnNavigate != nil {
		return p.OnNavigate(url)
	}
	p.Address = url
	return nil
}

func (p *Page) Settle(context.Context) { p.Settles++ }

func (p *Page) Frames(context.Context) ([]browser.Surface, error) {
	out := make([]browser.Surface, 0, len(p.FrameList))
	for _, f := range p.FrameList {
		out = append(out, f)
	}
	return out, nil
}

func (p *Page) ClickNewTab(ctx context.Context, sel string) (browser.Page, error) {
	tab, ok := p.NewTabs[sel]
	if err := p.Click(ctx, sel); err != nil {
		return nil, err
	}
	if !ok {
		return nil, browser.ErrNoNewTab
	}
	return tab, nil
}

func (p *Page) Close() error {
	p.Closed = true
	return nil
}

// Opener hands out scripted pages in order.
type Opener struct {
	Pages  []*Page
	Err    error
	Opened int
}

var _ browser.Opener = (*Opener)(nil)

// Open returns the next page, or Err when set. Once pages run out the last one is reused.
func (o *Opener) Open(context.Context) (browser.Page, error) {
	if o.Err != nil {
		return nil, o.Err
	}
	if len(o.Pages) == 0 {
		return nil, errors.New("browsertest: no pages scripted")
	}
	idx := o.Opened
	if idx >= len(o.Pages) {
		idx = len(o.Pages) - 1
	}
	o.Opened++
	return o.Pages[idx], nil
}
