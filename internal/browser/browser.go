// Package browser drives a controlled Chrome session for reading and filling application forms.
//
// Element discovery happens in Go over serialized surface HTML. The browser only executes
// actions against CSS selectors computed from that HTML, which keeps the decision logic
// testable against the fakes in browsertest.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrSnapshotMissing means no usable session snapshot was supplied.
	ErrSnapshotMissing = errors.New("session snapshot missing")
	// ErrUnavailable means the browser runtime could not be started.
	ErrUnavailable = errors.New("browser runtime unavailable")
	// ErrNoNewTab means a click succeeded but did not open a tab.
	ErrNoNewTab = errors.New("click did not open a new tab")
)

// Surface is a document or frame considered as a source of interactive fields.
type Surface interface {
	Label() string
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, on bool) error
	Upload(ctx context.Context, selector, path string) error
}

// Page is a browser tab. Its own Surface methods act on the top document.
type Page interface {
	Surface
	Navigate(ctx context.Context, url string) error
	// Settle waits a bounded time for the page to become quiet after an action.
	Settle(ctx context.Context)
	// Frames returns one Surface per child frame currently attached.
	Frames(ctx context.Context) ([]Surface, error)
	// ClickNewTab clicks selector and returns the tab it opened. ErrNoNewTab means the
	// click landed but the page stayed in the current tab.
	ClickNewTab(ctx context.Context, selector string) (Page, error)
	Close() error
}

// Opener opens pages. *Launcher is the chromedp implementation.
type Opener interface {
	Open(ctx context.Context) (Page, error)
}

// Options configures a browser session.
type Options struct {
	Headless         bool
	StorageStatePath string
	// RequireSnapshot rejects a session without a readable snapshot.
	RequireSnapshot bool
	Timeout         time.Duration
	Wait            time.Duration
	ActionTimeout   time.Duration
	ExecPath        string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 2 * time.Second
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 5 * time.Second
	}
	return o
}

// Surfaces returns the top document followed by every child frame.
// Frame listing failures leave just the top document.
func Surfaces(ctx context.Context, p Page) []Surface {
	out := []Surface{p}
	frames, err := p.Frames(ctx)
	if err != nil {
		return out
	}
	return append(out, frames...)
}

// Document parses a surface's current HTML.
func Document(ctx context.Context, s Surface) (*goquery.Document, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Label(), err)
	}
	return doc, nil
}

// CSSPath returns a selector addressing sel's first element in its document.
// Elements with an id use an attribute selector; others use an nth-of-type chain from <html>.
func CSSPath(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	node := sel.First()
	if id, ok := node.Attr("id"); ok && strings.TrimSpace(id) != "" {
		return fmt.Sprintf(`%s[id="%s"]`, goquery.NodeName(node), cssQuote(id))
	}

	var parts []string
	for cur := node; cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "" || name == "#document" {
			break
		}
		if name == "html" {
			parts = append(parts, "html")
			break
		}
		idx := 1
		for prev := cur.Prev(); prev.Length() > 0; prev = prev.Prev() {
			if goquery.NodeName(prev) == name {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", name, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

func cssQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// VisibleText returns the collapsed text of sel.
func VisibleText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}
