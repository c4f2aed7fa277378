// Package batch runs the pipeline over a bounded set of eligible jobs while enforcing a
// per-company application cap.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/pipeline"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// Result statuses that are not workflow statuses.
const (
	StatusSkippedCompanyLimit = "SKIPPED_COMPANY_LIMIT"
	StatusNotRun              = "NOT_RUN"
)

// ErrLocked is returned when another batch holds the lock file.
var ErrLocked = errors.New("another batch run holds the lock")

// Runner runs the pipeline for one job.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.RunState, error)
}

// Options select and pace a batch.
type Options struct {
	UserID         string
	ActorID        string
	Status         types.JobStatus
	Limit          int
	CompanyCap     int
	Concurrency    int
	ManualDecision string
	AutoPacket     bool
	LockPath       string
	LockWait       time.Duration
}

// Result is one entry per selected job, run or skipped.
type Result struct {
	JobID            string            `json:"job_id"`
	Company          string            `json:"company"`
	ApplicationID    string            `json:"application_id,omitempty"`
	Status           string            `json:"status"`
	Score            *float64          `json:"score,omitempty"`
	SubmissionStatus string            `json:"submission_status,omitempty"`
	SubmissionReason string            `json:"submission_reason,omitempty"`
	Errors           []string          `json:"errors"`
	Artifacts        map[string]string `json:"artifacts,omitempty"`
}

// Driver selects eligible jobs and hands each admitted one to the Runner.
type Driver struct {
	store  db.Store
	runner Runner
	log    *logging.Logger

	mu sync.Mutex
}

// New returns a Driver.
func New(store db.Store, runner Runner, log *logging.Logger) *Driver {
	if log == nil {
		log = logging.Nop()
	}
	return &Driver{store: store, runner: runner, log: log.With("component", "batch")}
}

// Run processes up to opts.Limit jobs in opts.Status. Admission is decided in selection order
// before any pipeline starts; admitted jobs then run with bounded concurrency. The returned
// results keep selection order.
func (d *Driver) Run(ctx context.Context, opts Options) ([]Result, error) {
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if opts.Status == "" {
		opts.Status = types.StatusDiscovered
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ActorID == "" {
		opts.ActorID = types.ActorAgent
	}

	if opts.LockPath != "" {
		unlock, err := acquire(ctx, opts.LockPath, opts.LockWait)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	jobs, err := d.store.ListJobsByStatus(ctx, opts.Status, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible jobs: %w", err)
	}
	d.log.Info("batch started", "status", opts.Status, "selected", len(jobs), "company_cap", opts.CompanyCap, "concurrency", opts.Concurrency)

	results := make([]Result, len(jobs))
	admitted := make([]bool, len(jobs))
	batchCounts := make(map[string]int)
	for i := range jobs {
		job := &jobs[i]
		results[i] = Result{JobID: job.ID.String(), Company: job.Company, Errors: []string{}}
		ok, err := d.admit(ctx, opts, job, batchCounts)
		if err != nil {
			results[i].Status = StatusNotRun
			results[i].Errors = append(results[i].Errors, err.Error())
			continue
		}
		if !ok {
			results[i].Status = StatusSkippedCompanyLimit
			results[i].Errors = append(results[i].Errors, fmt.Sprintf("Skipped: max applications reached for company '%s'", displayCompany(job)))
			continue
		}
		admitted[i] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range jobs {
		if !admitted[i] {
			continue
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Status = StatusNotRun
				results[i].Errors = append(results[i].Errors, err.Error())
				return nil
			}
			d.runOne(gctx, opts, jobs[i].ID, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	d.log.Info("batch finished", "results", len(results))
	return results, nil
}

// admit decides whether job fits under the company cap. The persisted count and the batch's own
// counter are checked together under one lock, and the store reserves the slot atomically.
func (d *Driver) admit(ctx context.Context, opts Options, job *types.JobPosting, batchCounts map[string]int) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := job.CompanyKey()
	if opts.CompanyCap > 0 && batchCounts[key] >= opts.CompanyCap {
		return false, d.auditSkip(ctx, opts, job, batchCounts[key])
	}
	ok, err := d.store.ReserveCompanySlot(ctx, opts.UserID, key, job.ID, opts.CompanyCap)
	if err != nil {
		return false, fmt.Errorf("failed to reserve company slot: %w", err)
	}
	if !ok {
		existing, err := d.store.CountActiveApplications(ctx, opts.UserID, key)
		if err != nil {
			return false, fmt.Errorf("failed to count applications: %w", err)
		}
		return false, d.auditSkip(ctx, opts, job, existing)
	}
	batchCounts[key]++
	return true, nil
}

func (d *Driver) auditSkip(ctx context.Context, opts Options, job *types.JobPosting, existing int) error {
	d.log.Info("job skipped for company limit", "job_id", job.ID.String(), "company", displayCompany(job), "limit", opts.CompanyCap)
	if err := d.store.AppendAudit(ctx, types.AuditEvent{
		ActorType:  types.ActorSystem,
		ActorID:    opts.ActorID,
		Action:     types.ActionCompanyLimitSkipped,
		EntityType: types.EntityJob,
		EntityID:   job.ID.String(),
		Payload: map[string]any{
			"company":        displayCompany(job),
			"limit":          opts.CompanyCap,
			"existing_count": existing,
		},
	}); err != nil {
		return fmt.Errorf("failed to audit company limit skip: %w", err)
	}
	return nil
}

func (d *Driver) runOne(ctx context.Context, opts Options, jobID uuid.UUID, out *Result) {
	st, err := d.runner.Run(ctx, pipeline.Input{
		JobID:          jobID,
		UserID:         opts.UserID,
		ActorID:        opts.ActorID,
		ManualDecision: opts.ManualDecision,
		AutoPacket:     opts.AutoPacket,
	})
	if err != nil {
		out.Status = StatusNotRun
		out.Errors = append(out.Errors, err.Error())
		d.log.Warn("pipeline run rejected", "job_id", out.JobID, "error", err)
		return
	}
	out.Status = string(st.Status)
	out.Score = st.Score
	out.Errors = append(out.Errors, st.Errors...)
	out.Artifacts = st.Artifacts
	if st.ApplicationID != uuid.Nil {
		out.ApplicationID = st.ApplicationID.String()
	}
	if st.Submission != nil {
		out.SubmissionStatus = st.Submission.Status
		out.SubmissionReason = st.Submission.Reason
	}
}

func displayCompany(job *types.JobPosting) string {
	if job.Company != "" {
		return job.Company
	}
	return job.CompanyKey()
}

// acquire takes the cross-process batch lock, waiting up to wait for it.
func acquire(ctx context.Context, path string, wait time.Duration) (func(), error) {
	fl := flock.New(path)
	var (
		locked bool
		err    error
	)
	if wait > 0 {
		lctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		locked, err = fl.TryLockContext(lctx, 100*time.Millisecond)
		if errors.Is(err, context.DeadlineExceeded) {
			err = nil
		}
	} else {
		locked, err = fl.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire batch lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}
