package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/apply-autopilot/internal/logging"
)

// maxFrameDepth bounds recursion into nested iframes.
const maxFrameDepth = 3

// Pacer delays navigation to a URL's host.
type Pacer interface {
	WaitURL(ctx context.Context, raw string) error
}

// Launcher starts chromedp sessions. One Launcher may open many pages, one tab each.
type Launcher struct {
	opts  Options
	log   *logging.Logger
	pacer Pacer
}

// NewLauncher returns a Launcher. pacer may be nil.
func NewLauncher(opts Options, log *logging.Logger, pacer Pacer) *Launcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Launcher{opts: opts.withDefaults(), log: log, pacer: pacer}
}

// Open starts a browser, restores the session snapshot and returns its first tab.
func (l *Launcher) Open(ctx context.Context) (Page, error) {
	var snap *Snapshot
	if l.opts.RequireSnapshot || l.opts.StorageStatePath != "" {
		s, err := LoadSnapshot(l.opts.StorageStatePath)
		if err != nil {
			return nil, err
		}
		snap = s
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	startCtx, cancelStart := context.WithTimeout(tabCtx, l.opts.Timeout)
	defer cancelStart()
	if err := chromedp.Run(startCtx); err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if snap != nil {
		err := chromedp.Run(startCtx, chromedp.ActionFunc(func(ctx context.Context) error {
			if params := snap.CookieParams(); len(params) > 0 {
				if err := network.SetCookies(params).Do(ctx); err != nil {
					return fmt.Errorf("restore cookies: %w", err)
				}
			}
			if script := snap.StorageScript(); script != "" {
				if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
					return fmt.Errorf("restore local storage: %w", err)
				}
			}
			return nil
		}))
		if err != nil {
			cancel()
			return nil, err
		}
		l.log.Debug("session snapshot restored", "cookies", len(snap.Cookies), "origins", len(snap.Origins))
	}

	return &chromePage{
		chromeSurface: chromeSurface{label: "main"},
		ctx:           tabCtx,
		cancel:        cancel,
		opts:          l.opts,
		log:           l.log,
		pacer:         l.pacer,
	}, nil
}

type chromePage struct {
	chromeSurface
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	log    *logging.Logger
	pacer  Pacer
}

// run executes actions on the tab bounded by timeout and the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if p.pacer != nil {
		if err := p.pacer.WaitURL(ctx, url); err != nil {
			return err
		}
	}
	p.log.Debug("navigate", "url", url)
	return p.run(ctx, p.opts.Timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromePage) Settle(ctx context.Context) {
	_ = p.run(ctx, p.opts.Wait+p.opts.ActionTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(p.opts.Wait),
	)
}

func (p *chromePage) Frames(ctx context.Context) ([]Surface, error) {
	var out []Surface
	var walk func(root *cdp.Node, prefix string, depth int) error
	walk = func(root *cdp.Node, prefix string, depth int) error {
		if depth > maxFrameDepth {
			return nil
		}
		var nodes []*cdp.Node
		opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
		if root != nil {
			opts = append(opts, chromedp.FromNode(root))
		}
		if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Nodes("iframe", &nodes, opts...)); err != nil {
			return err
		}
		for i, n := range nodes {
			label := fmt.Sprintf("%sframe[%d]", prefix, i)
			out = append(out, &frameSurface{chromeSurface: chromeSurface{label: label, root: n}, page: p})
			_ = walk(n, label+"/", depth+1)
		}
		return nil
	}
	if err := walk(nil, "", 1); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *chromePage) ClickNewTab(ctx context.Context, selector string) (Page, error) {
	c := chromedp.FromContext(p.ctx)
	if c == nil || c.Target == nil {
		return nil, errors.New("tab has no target")
	}
	opener := c.Target.TargetID
	ch := chromedp.WaitNewTarget(p.ctx, func(info *target.Info) bool {
		return info.OpenerID == opener
	})
	if err := p.Click(ctx, selector); err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.opts.Wait + p.opts.ActionTimeout)
	defer timer.Stop()
	select {
	case id := <-ch:
		tabCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
		np := &chromePage{
			chromeSurface: chromeSurface{label: "main"},
			ctx:           tabCtx,
			cancel:        cancel,
			opts:          p.opts,
			log:           p.log,
			pacer:         p.pacer,
		}
		np.Settle(ctx)
		return np, nil
	case <-timer.C:
		return nil, ErrNoNewTab
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) { return p.html(ctx, p) }
func (p *chromePage) Click(ctx context.Context, sel string) error {
	return p.click(ctx, p, sel)
}
func (p *chromePage) Fill(ctx context.Context, sel, v string) error { return p.fill(ctx, p, sel, v) }
func (p *chromePage) SelectOption(ctx context.Context, sel, v string) error {
	return p.selectOption(ctx, p, sel, v)
}
func (p *chromePage) SetChecked(ctx context.Context, sel string, on bool) error {
	return p.setChecked(ctx, p, sel, on)
}
func (p *chromePage) Upload(ctx context.Context, sel, path string) error {
	return p.upload(ctx, p, sel, path)
}

// frameSurface addresses a child frame of a page by its iframe node.
type frameSurface struct {
	chromeSurface
	page *chromePage
}

func (f *frameSurface) URL(_ context.Context) (string, error) {
	if f.root.ContentDocument != nil && f.root.ContentDocument.DocumentURL != "" {
		return f.root.ContentDocument.DocumentURL, nil
	}
	return f.root.AttributeValue("src"), nil
}

func (f *frameSurface) HTML(ctx context.Context) (string, error) { return f.html(ctx, f.page) }
func (f *frameSurface) Click(ctx context.Context, sel string) error {
	return f.click(ctx, f.page, sel)
}
func (f *frameSurface) Fill(ctx context.Context, sel, v string) error {
	return f.fill(ctx, f.page, sel, v)
}
func (f *frameSurface) SelectOption(ctx context.Context, sel, v string) error {
	return f.selectOption(ctx, f.page, sel, v)
}
func (f *frameSurface) SetChecked(ctx context.Context, sel string, on bool) error {
	return f.setChecked(ctx, f.page, sel, on)
}
func (f *frameSurface) Upload(ctx context.Context, sel, path string) error {
	return f.upload(ctx, f.page, sel, path)
}

// chromeSurface carries the shared selector plumbing. A nil root is the top document.
type chromeSurface struct {
	label string
	root  *cdp.Node
}

func (s *chromeSurface) Label() string { return s.label }

func (s *chromeSurface) query() []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if s.root != nil {
		opts = append(opts, chromedp.FromNode(s.root))
	}
	return opts
}

func (s *chromeSurface) html(ctx context.Context, p *chromePage) (string, error) {
	var out string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &out, s.query()...))
	return out, err
}

func (s *chromeSurface) click(ctx context.Context, p *chromePage, sel string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.Click(sel, append(s.query(), chromedp.NodeVisible)...))
}

func (s *chromeSurface) fill(ctx context.Context, p *chromePage, sel, value string) error {
	_ = p.run(ctx, p.opts.ActionTimeout, chromedp.Clear(sel, s.query()...))
	return p.run(ctx, p.opts.ActionTimeout, chromedp.SendKeys(sel, value, s.query()...))
}

func (s *chromeSurface) upload(ctx context.Context, p *chromePage, sel, path string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.SetUploadFiles(sel, []string{path}, s.query()...))
}

func (s *chromeSurface) selectOption(ctx context.Context, p *chromePage, sel, value string) error {
	decl := fmt.Sprintf(`function(){this.value=%s;this.dispatchEvent(new Event('input',{bubbles:true}));this.dispatchEvent(new Event('change',{bubbles:true}));}`, jsString(value))
	return s.callOn(ctx, p, sel, decl)
}

func (s *chromeSurface) setChecked(ctx context.Context, p *chromePage, sel string, on bool) error {
	decl := fmt.Sprintf(`function(){if(this.checked!==%t){this.click();}}`, on)
	return s.callOn(ctx, p, sel, decl)
}

// callOn runs a function declaration with `this` bound to the first node matching sel.
func (s *chromeSurface) callOn(ctx context.Context, p *chromePage, sel, decl string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(sel, &nodes, s.query()...).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			return fmt.Errorf("no node for %s", sel)
		}
		obj, err := dom.ResolveNode().WithNodeID(nodes[0].NodeID).Do(ctx)
		if err != nil {
			return err
		}
		_, exc, err := runtime.CallFunctionOn(decl).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("script error: %s", exc.Text)
		}
		return nil
	}))
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return strings.TrimSpace(string(b))
}
