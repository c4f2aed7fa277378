package submission

import (
	"context"
	"errors"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/config"
	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/secrets"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Request is everything one submission needs.
type Request struct {
	URL string
	// Platform overrides URL-based platform detection.
	Platform string
	// Fields is the resolved payload for the job's catalog. Multi-step mode resolves each page
	// live instead.
	Fields  []types.ResolvedField
	Drafts  *types.Drafts
	Profile *types.Profile
	// SourceName and AutomationAllowed come from the job's source.
	SourceName        string
	AutomationAllowed bool
}

// Mode is one way of driving a form to an outcome. Attempt returns an error only for fatal
// infrastructure failures; everything else is an Outcome.
type Mode interface {
	Attempt(ctx context.Context, req Request) (*Outcome, error)
}

// ModeFunc adapts a function to Mode.
type ModeFunc func(ctx context.Context, req Request) (*Outcome, error)

// Attempt implements Mode.
func (f ModeFunc) Attempt(ctx context.Context, req Request) (*Outcome, error) {
	return f(ctx, req)
}

// Run calls m up to retries+1 times, stopping at the first terminal status. The returned
// outcome carries the number of attempts actually made. A fatal error ends the loop at once.
func Run(ctx context.Context, m Mode, req Request, retries int) (*Outcome, error) {
	attempts := retries + 1
	if attempts < 1 {
		attempts = 1
	}
	last := &Outcome{Status: StatusFailed, Reason: ReasonNotAttempted, ResponseURL: req.URL}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		out, err := m.Attempt(ctx, req)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &Outcome{Status: StatusFailed, Reason: ReasonNotAttempted, ResponseURL: req.URL}
		}
		out.Attempts = attempt
		last = out
		if Terminal(out.Status) {
			break
		}
	}
	return last, nil
}

// Engine selects a mode for each request and runs it under the retry wrapper.
type Engine struct {
	policy   Policy
	opener   browser.Opener
	secrets  secrets.Resolver
	resolver *formfill.Resolver
	log      *logging.Logger
}

// NewEngine returns an Engine. opener may be nil in mock mode; sec defaults to the environment.
func NewEngine(policy Policy, opener browser.Opener, sec secrets.Resolver, resolver *formfill.Resolver, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	if sec == nil {
		sec = secrets.NewEnvSource()
	}
	if resolver == nil {
		resolver = formfill.NewResolver(formfill.Assets{}, "", log)
	}
	return &Engine{
		policy:   policy.withDefaults(),
		opener:   opener,
		secrets:  sec,
		resolver: resolver,
		log:      log.With("component", "submission"),
	}
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Submit runs the request to an outcome. It returns a *PolicyError when automation is not
// allowed for the request's source and a *FatalError when no browser session can be started.
func (e *Engine) Submit(ctx context.Context, req Request) (*Outcome, error) {
	if !req.AutomationAllowed {
		return nil, &PolicyError{Source: req.SourceName, Message: "automation is disabled for this source"}
	}
	mode, name := e.modeFor(req)
	e.log.Info("submission started", "url", req.URL, "mode", name, "dry_run", e.policy.DryRun, "retries", e.policy.Retries)

	out, err := Run(ctx, mode, req, e.policy.Retries)
	if err != nil {
		e.log.Error("submission aborted", "url", req.URL, "mode", name, "error", err)
		return nil, err
	}
	e.log.Info("submission finished",
		"url", req.URL,
		"mode", name,
		"status", out.Status,
		"reason", out.Reason,
		"attempts", out.Attempts,
		"filled", out.FilledCount,
	)
	return out, nil
}

func (e *Engine) modeFor(req Request) (Mode, string) {
	if e.policy.Mode != config.ModeBrowser {
		return MockMode{DryRun: e.policy.DryRun}, "mock"
	}
	if e.platformOf(req).MultiStep() {
		return ModeFunc(e.multiStep), "multi_step"
	}
	return ModeFunc(e.generic), "generic"
}

func (e *Engine) platformOf(req Request) fetch.Platform {
	if p := strings.ToLower(strings.TrimSpace(req.Platform)); p != "" {
		return fetch.Platform(p)
	}
	return fetch.DetectPlatform(req.URL)
}

// open starts one browser tab for an attempt, translating session failures into fatal errors.
func (e *Engine) open(ctx context.Context) (browser.Page, error) {
	if e.opener == nil {
		return nil, &FatalError{Kind: KindBrowserUnavailable, Message: "no browser configured"}
	}
	p, err := e.opener.Open(ctx)
	if err == nil {
		return p, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, browser.ErrSnapshotMissing) {
		return nil, &FatalError{Kind: KindSnapshotMissing, Message: "session snapshot is required for browser submission", Cause: err}
	}
	return nil, &FatalError{Kind: KindBrowserUnavailable, Message: "browser session could not be started", Cause: err}
}

// BrowserOptions derives launcher options from the policy. Submissions always require a
// session snapshot.
func (p Policy) BrowserOptions() browser.Options {
	p = p.withDefaults()
	return browser.Options{
		Headless:         p.Headless,
		StorageStatePath: p.StorageStatePath,
		RequireSnapshot:  true,
		Timeout:          p.Timeout,
		Wait:             p.Wait,
	}
}

func currentURL(ctx context.Context, s browser.Surface, fallback string) string {
	if u, err := s.URL(ctx); err == nil && u != "" {
		return u
	}
	return fallback
}

func failed(reason, url string) *Outcome {
	return &Outcome{Status: StatusFailed, Reason: reason, ResponseURL: url}
}

func blocked(reason, url string) *Outcome {
	return &Outcome{Status: StatusBlocked, Reason: reason, ResponseURL: url}
}
