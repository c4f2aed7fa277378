package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/config"
	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/db/memdb"
	"github.com/jonathan/apply-autopilot/internal/drafting"
	"github.com/jonathan/apply-autopilot/internal/fetch"
	"github.com/jonathan/apply-autopilot/internal/formcatalog"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/ingestion"
	"github.com/jonathan/apply-autopilot/internal/llm"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/packet"
	"github.com/jonathan/apply-autopilot/internal/parsing"
	"github.com/jonathan/apply-autopilot/internal/pipeline"
	"github.com/jonathan/apply-autopilot/internal/profile"
	"github.com/jonathan/apply-autopilot/internal/ratelimit"
	"github.com/jonathan/apply-autopilot/internal/rendering"
	"github.com/jonathan/apply-autopilot/internal/retrieval"
	"github.com/jonathan/apply-autopilot/internal/scoring"
	"github.com/jonathan/apply-autopilot/internal/secrets"
	"github.com/jonathan/apply-autopilot/internal/submission"
	"github.com/jonathan/apply-autopilot/internal/types"
	"github.com/jonathan/apply-autopilot/internal/verification"
)

// Store backends accepted by --store.
const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// app holds the collaborators built from one effective configuration.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	store   db.Store
	limiter ratelimit.Limiter
	hosts   *ratelimit.HostLimiter
	profile *types.Profile
	closers []func()
}

// loadConfig applies flag overrides on top of config.Load and validates the result again.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logMode != "" {
		cfg.LogMode = opts.logMode
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.userID != "" {
		cfg.UserID = opts.userID
	}
	if opts.actorID != "" {
		cfg.ActorID = opts.actorID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if err := a.openStore(ctx, opts.store); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		r, err := ratelimit.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.limiter = r
		a.closers = append(a.closers, func() { _ = r.Close() })
	} else {
		m := ratelimit.NewMemory(time.Minute)
		a.limiter = m
		a.closers = append(a.closers, m.Stop)
	}
	a.hosts = ratelimit.NewHostLimiter(cfg.HostRequestsPerSecond, 1)

	a.profile = &types.Profile{}
	if cfg.ProfilePath != "" {
		p, err := profile.Load(cfg.ProfilePath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.profile = p
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, kind string) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		kind = storeMemory
		if a.cfg.DatabaseURL != "" {
			kind = storePostgres
		}
	}
	switch kind {
	case storeMemory:
		a.store = memdb.New()
		a.log.Warn("using the in-memory store; nothing outlives this command")
	case storePostgres:
		if a.cfg.DatabaseURL == "" {
			return fmt.Errorf("--store postgres needs database_url or DATABASE_URL")
		}
		pg, err := db.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
	default:
		return fmt.Errorf("unknown store %q (supported: postgres, memory)", kind)
	}
	return nil
}

// Close releases everything newApp opened, most recent first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	a.log.Sync()
}

func (a *app) window() time.Duration {
	return time.Duration(a.cfg.RateLimitWindowSeconds) * time.Second
}

func (a *app) companyCap() int {
	return profile.CompanyCap(a.profile, a.cfg.MaxApplicationsPerCompany)
}

func (a *app) keyring() *secrets.KeyringSource {
	return &secrets.KeyringSource{Service: a.cfg.KeyringService, Account: a.cfg.KeyringAccount}
}

func (a *app) resolver() *formfill.Resolver {
	return formfill.NewResolver(formfill.Assets{
		ResumePath:     a.cfg.ResumePDFPath,
		TranscriptPath: a.cfg.TranscriptPDFPath,
		Dir:            a.cfg.AssetDir,
	}, a.cfg.PasswordEnv, a.log)
}

// catalogOpener opens browser sessions for form cataloging and posting rendering. The
// session snapshot is used when present but is not required.
func (a *app) catalogOpener() browser.Opener {
	sub := a.cfg.Submission
	opts := browser.Options{
		Headless: sub.Headless,
		Timeout:  time.Duration(sub.TimeoutMS) * time.Millisecond,
		Wait:     time.Duration(sub.WaitMS) * time.Millisecond,
	}
	if _, err := os.Stat(sub.StorageStatePath); sub.StorageStatePath != "" && err == nil {
		opts.StorageStatePath = sub.StorageStatePath
	}
	return browser.NewLauncher(opts, a.log, a.hosts)
}

func (a *app) catalog() *formcatalog.Service {
	return formcatalog.NewService(formcatalog.NewBuilder(a.catalogOpener(), a.log), a.store, a.log)
}

func (a *app) engine() *submission.Engine {
	policy := submission.PolicyFromConfig(a.cfg.Submission)
	var opener browser.Opener
	if policy.Mode == config.ModeBrowser {
		opener = browser.NewLauncher(policy.BrowserOptions(), a.log, a.hosts)
	}
	return submission.NewEngine(policy, opener, secrets.Chain{secrets.NewEnvSource(), a.keyring()}, a.resolver(), a.log)
}

func (a *app) ingestion() *ingestion.Service {
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Pacer = a.hosts
	opener := a.catalogOpener()
	return ingestion.NewService(a.store, ingestion.Options{
		Limiter: a.limiter,
		Limit:   a.cfg.IngestionRateLimit,
		Window:  a.window(),
		Fetch:   fetchOpts,
		Render: func(ctx context.Context, url string) (string, error) {
			return browser.RenderHTML(ctx, opener, url)
		},
		Catalog: a.catalog(),
		Log:     a.log,
	})
}

func (a *app) drafter(ctx context.Context) (drafting.Drafter, error) {
	var client llm.Client
	if strings.EqualFold(strings.TrimSpace(a.cfg.DraftingProvider), drafting.ProviderGemini) {
		c, err := llm.NewClient(ctx, llm.DefaultConfig(), a.cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		client = c
	}
	return drafting.New(a.cfg.DraftingProvider, client, a.log)
}

func (a *app) packets() (*packet.Builder, error) {
	templateDir := ""
	if a.cfg.AssetDir != "" {
		templateDir = filepath.Join(a.cfg.AssetDir, "templates")
	}
	renderer, err := rendering.NewRenderer(templateDir)
	if err != nil {
		return nil, err
	}
	return packet.NewBuilder(a.store, renderer, a.profile, packet.Options{
		OutputDir:         a.cfg.OutputDir,
		ResumePDFPath:     a.cfg.ResumePDFPath,
		TranscriptPDFPath: a.cfg.TranscriptPDFPath,
	}, a.log), nil
}

func (a *app) orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	embedder, err := scoring.NewEmbedder(a.cfg.EmbeddingProvider, 0)
	if err != nil {
		return nil, err
	}
	drafter, err := a.drafter(ctx)
	if err != nil {
		return nil, err
	}
	packets, err := a.packets()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Deps{
		Store:     a.store,
		Profile:   a.profile,
		Parser:    parsing.NewHeuristic(),
		Scorer:    scoring.NewFitScorer(embedder),
		Retriever: retrieval.NewSimilarity(embedder),
		Drafter:   drafter,
		Verifier:  verification.NewGrounding(),
		Catalog:   a.catalog(),
		Resolver:  a.resolver(),
		Submitter: a.engine(),
		Packets:   packets,
		Limiter:   a.limiter,
	}, pipeline.Options{
		DraftingRateLimit: a.cfg.DraftingRateLimit,
		RateLimitWindow:   a.window(),
	}, a.log)
}

func parseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid job id %q: %w", raw, err)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
