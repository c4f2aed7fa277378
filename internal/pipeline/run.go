// Package pipeline runs one job through the nine-node application graph: scout, parser,
// scorer, writer, verifier, approval gate, auto-fill, packet builder and tracker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/drafting"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/parsing"
	"github.com/jonathan/apply-autopilot/internal/pipeline/steps"
	"github.com/jonathan/apply-autopilot/internal/ratelimit"
	"github.com/jonathan/apply-autopilot/internal/retrieval"
	"github.com/jonathan/apply-autopilot/internal/scoring"
	"github.com/jonathan/apply-autopilot/internal/submission"
	"github.com/jonathan/apply-autopilot/internal/types"
	"github.com/jonathan/apply-autopilot/internal/verification"
)

// CatalogSource returns a job's field catalog, fetching it when none is stored.
type CatalogSource interface {
	Ensure(ctx context.Context, job *types.JobPosting, actorID string) ([]types.FormField, error)
}

// Submitter drives a resolved payload to an outcome.
type Submitter interface {
	Submit(ctx context.Context, req submission.Request) (*submission.Outcome, error)
}

// PacketBuilder writes the review packet for an application.
type PacketBuilder interface {
	Build(ctx context.Context, app *types.Application) (map[string]string, error)
}

// Deps are the collaborators every node draws on. Store, Parser, Scorer, Retriever, Drafter,
// Verifier and Submitter are required.
type Deps struct {
	Store     db.Store
	Profile   *types.Profile
	Parser    parsing.Parser
	Scorer    scoring.Scorer
	Retriever retrieval.Retriever
	Drafter   drafting.Drafter
	Verifier  verification.Verifier
	Catalog   CatalogSource
	Resolver  *formfill.Resolver
	Submitter Submitter
	Packets   PacketBuilder
	Limiter   ratelimit.Limiter
}

// Options tune the writer's rate limit and evidence retrieval.
type Options struct {
	DraftingRateLimit int
	RateLimitWindow   time.Duration
	TopK              int
}

// Input identifies one run.
type Input struct {
	JobID          uuid.UUID
	UserID         string
	ActorID        string
	ManualDecision string
	AutoPacket     bool
}

type nodeFunc func(ctx context.Context, st *RunState) error

// Orchestrator walks the transition table in steps.StepRegistry.
type Orchestrator struct {
	deps  Deps
	opts  Options
	log   *logging.Logger
	now   func() time.Time
	nodes map[string]nodeFunc
}

// New returns an Orchestrator. It fails when a required collaborator is missing or the
// transition table is inconsistent.
func New(deps Deps, opts Options, log *logging.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logging.Nop()
	}
	var missing []string
	for name, ok := range map[string]bool{
		"store":     deps.Store != nil,
		"parser":    deps.Parser != nil,
		"scorer":    deps.Scorer != nil,
		"retriever": deps.Retriever != nil,
		"drafter":   deps.Drafter != nil,
		"verifier":  deps.Verifier != nil,
		"submitter": deps.Submitter != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("pipeline is missing collaborators: %s", strings.Join(missing, ", "))
	}
	if err := steps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transition table: %w", err)
	}
	if deps.Profile == nil {
		deps.Profile = &types.Profile{}
	}
	if deps.Resolver == nil {
		deps.Resolver = formfill.NewResolver(formfill.Assets{}, "", log)
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = time.Minute
	}

	o := &Orchestrator{
		deps: deps,
		opts: opts,
		log:  log.With("component", "pipeline"),
		now:  time.Now,
	}
	o.nodes = map[string]nodeFunc{
		steps.Scout:         o.scout,
		steps.Parser:        o.parse,
		steps.Scorer:        o.score,
		steps.Writer:        o.write,
		steps.Verifier:      o.verify,
		steps.ApprovalGate:  o.approve,
		steps.AutoFill:      o.autoFill,
		steps.PacketBuilder: o.buildPacket,
		steps.Tracker:       o.track,
	}
	return o, nil
}

// Run walks the graph for one job and returns the final run state. Node failures never
// escape: they are recorded in RunState.Errors. An error is returned only for invalid input.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*RunState, error) {
	if in.JobID == uuid.Nil {
		return nil, errors.New("job id is required")
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if _, err := o.deps.Store.GetJob(ctx, in.JobID); err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", in.JobID, err)
	}
	decision := strings.ToUpper(strings.TrimSpace(in.ManualDecision))
	if decision == "" {
		decision = DecisionAutoApprove
	}
	st := &RunState{
		RunID:          uuid.New(),
		JobID:          in.JobID,
		UserID:         in.UserID,
		ActorID:        firstNonEmpty(in.ActorID, types.ActorAgent),
		ManualDecision: decision,
		AutoPacket:     in.AutoPacket,
		Errors:         []string{},
	}
	if app, err := o.deps.Store.GetApplicationByJob(ctx, in.JobID); err == nil {
		st.ApplicationID = app.ID
	}

	log := o.log.With("run_id", st.RunID.String(), "job_id", in.JobID.String())
	log.Info("pipeline started", "decision", decision)

	node := steps.Scout
	for hops := 0; node != steps.End; hops++ {
		if hops > len(steps.StepRegistry) {
			return st, fmt.Errorf("pipeline did not reach %s after %d nodes", steps.End, hops)
		}
		o.runNode(ctx, log, node, st)
		next, err := steps.Route(node, st.Status)
		if err != nil {
			return st, err
		}
		node = next
	}

	log.Info("pipeline finished", "status", st.Status, "errors", len(st.Errors), "nodes", strings.Join(st.Visited, ","))
	return st, nil
}

// runNode executes one node, converting a returned error or a panic into a recorded error.
// The status is left as the node last set it.
func (o *Orchestrator) runNode(ctx context.Context, log *logging.Logger, name string, st *RunState) {
	st.Visited = append(st.Visited, name)
	log.Debug("node entered", "node", name, "status", st.Status)
	defer func() {
		if r := recover(); r != nil {
			st.addError("%s failed: %v", name, r)
			log.Error("node panicked", "node", name, "panic", r)
		}
		log.Debug("node finished", "node", name, "status", st.Status)
	}()

	if err := o.nodes[name](ctx, st); err != nil {
		st.addError("%s failed: %v", name, err)
		log.Warn("node failed", "node", name, "error", err)
	}
}

func (o *Orchestrator) audit(ctx context.Context, st *RunState, action, entityType, entityID string, payload map[string]any) error {
	if err := o.deps.Store.AppendAudit(ctx, types.AuditEvent{
		ActorType:  types.ActorAgent,
		ActorID:    st.ActorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("failed to audit %s: %w", action, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
