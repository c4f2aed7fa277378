package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/formfill"
	"github.com/jonathan/apply-autopilot/internal/submission"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const internshipFitThreshold = 0.5

// Submission reasons recorded when the engine returns an error instead of an outcome.
const (
	reasonAutomationDisallowed = "automation_disallowed"
	reasonSubmissionError      = "submission_error"
	reasonNotCompleted         = "submission_not_completed"
)

// scout records pipeline entry and picks up the job's recorded status.
func (o *Orchestrator) scout(ctx context.Context, st *RunState) error {
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	st.Status = job.Status
	return o.audit(ctx, st, types.ActionScoutEntered, types.EntityJob, job.ID.String(), map[string]any{
		"run_id": st.RunID.String(),
		"status": job.Status,
	})
}

func (o *Orchestrator) parse(ctx context.Context, st *RunState) error {
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	structured := o.deps.Parser.Parse(job.RawText, job.RawPayload)
	if job.PostedAt != nil {
		structured.PostedAt = job.PostedAt
	}
	job.Title = firstNonEmpty(structured.Title, job.Title)
	job.Company = firstNonEmpty(structured.Company, job.Company)
	job.Location = firstNonEmpty(structured.Location, job.Location)
	job.Seniority = firstNonEmpty(structured.Seniority, job.Seniority)
	job.Structured = &structured
	st.Structured = &structured

	if !structured.PostingActive {
		reason := firstNonEmpty(structured.PostingInactiveReason, "posting marked inactive")
		if err := o.close(ctx, job, reason); err != nil {
			return err
		}
		st.Status = types.StatusClosed
		st.addError("Filtered: inactive posting (%s)", reason)
		return o.audit(ctx, st, types.ActionJobFiltered, types.EntityJob, job.ID.String(), map[string]any{
			"reason": "posting_inactive",
			"detail": reason,
		})
	}

	job.Status = types.StatusParsed
	job.CloseReason = ""
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save parsed job: %w", err)
	}
	st.Status = types.StatusParsed
	return o.audit(ctx, st, types.ActionJobParsed, types.EntityJob, job.ID.String(), map[string]any{
		"structured_fields": []string{"title", "company", "location", "seniority"},
		"posting_active":    true,
	})
}

func (o *Orchestrator) score(ctx context.Context, st *RunState) error {
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	structured := structuredFor(st, job)
	total, breakdown, err := o.deps.Scorer.Score(ctx, o.deps.Profile, structured, job.RawText)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}
	job.Score = &total
	job.ScoreBreakdown = breakdown
	st.Score = &total
	st.ScoreBreakdown = breakdown

	fit, ok := breakdown["internship_role_fit"]
	if !ok {
		fit = 1
	}
	if o.deps.Profile.InternshipPreferences.TargetInternshipsOnly && fit < internshipFitThreshold {
		if err := o.close(ctx, job, "internship-only non-match"); err != nil {
			return err
		}
		st.Status = types.StatusClosed
		st.addError("Filtered: internship-only targeting enabled and job did not match internship terms")
		return o.audit(ctx, st, types.ActionJobFiltered, types.EntityJob, job.ID.String(), map[string]any{
			"reason":              "internship_only_non_match",
			"internship_role_fit": fit,
			"score":               total,
		})
	}

	job.Status = types.StatusScored
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	st.Status = types.StatusScored
	return o.audit(ctx, st, types.ActionJobScored, types.EntityJob, job.ID.String(), map[string]any{
		"score":     total,
		"breakdown": breakdown,
	})
}

// write drafts the application documents. A rate-limited writer records the error and leaves
// everything as it was.
func (o *Orchestrator) write(ctx context.Context, st *RunState) error {
	if o.deps.Limiter != nil && o.opts.DraftingRateLimit > 0 {
		allowed, err := o.deps.Limiter.Allow(ctx, "draft:"+st.ActorID, o.opts.DraftingRateLimit, o.opts.RateLimitWindow)
		if err != nil {
			return fmt.Errorf("rate limiter unavailable: %w", err)
		}
		if !allowed {
			st.addError("Drafting rate limit exceeded")
			o.log.Warn("drafting rate limited", "actor_id", st.ActorID, "job_id", st.JobID.String())
			return nil
		}
	}

	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	structured := structuredFor(st, job)
	evidence, err := o.deps.Retriever.Retrieve(ctx, o.deps.Profile, job.RawText, o.opts.TopK)
	if err != nil {
		return fmt.Errorf("evidence retrieval failed: %w", err)
	}
	drafts, claims, err := o.deps.Drafter.Draft(ctx, o.deps.Profile, structured, evidence)
	if err != nil {
		return fmt.Errorf("drafting failed: %w", err)
	}

	job.Drafts = drafts
	job.Status = types.StatusDrafted
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save drafts: %w", err)
	}
	app, err := o.deps.Store.GetOrCreateApplication(ctx, st.UserID, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load application: %w", err)
	}
	app.Status = types.StatusDrafted
	app.ClaimsTable = claims
	app.VerificationPassed = nil
	app.VerificationReport = nil
	if err := o.deps.Store.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("failed to save claims: %w", err)
	}

	st.ApplicationID = app.ID
	st.Evidence = evidence
	st.Drafts = drafts
	st.Claims = claims
	st.Status = types.StatusDrafted
	return o.audit(ctx, st, types.ActionDraftGenerated, types.EntityApplication, app.ID.String(), map[string]any{
		"claims_count":   len(claims),
		"evidence_count": len(evidence),
	})
}

// verify checks the drafts of this run, or the stored drafts when the writer did not run.
func (o *Orchestrator) verify(ctx context.Context, st *RunState) error {
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	app, err := o.deps.Store.GetOrCreateApplication(ctx, st.UserID, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load application: %w", err)
	}
	st.ApplicationID = app.ID

	drafts := st.Drafts
	if drafts == nil {
		drafts = job.Drafts
	}
	if drafts == nil {
		st.addError("No drafts available for verification")
		st.Status = app.Status
		return nil
	}
	claims := st.Claims
	if claims == nil {
		claims = app.ClaimsTable
	}
	target := *structuredFor(st, job)
	target.Company = firstNonEmpty(target.Company, job.Company)
	target.Title = firstNonEmpty(target.Title, job.Title)

	report := o.deps.Verifier.Verify(o.deps.Profile, drafts, claims, &target)
	passed := report.Passed
	app.VerificationPassed = &passed
	app.VerificationReport = report
	status := types.StatusDrafted
	if passed {
		status = types.StatusVerified
	}
	if err := o.setStatus(ctx, job, app, status); err != nil {
		return err
	}

	st.Report = report
	st.Status = status
	if !passed {
		st.Errors = append(st.Errors, report.Reasons...)
	}
	return o.audit(ctx, st, types.ActionVerificationCompleted, types.EntityApplication, app.ID.String(), map[string]any{
		"passed":  passed,
		"reasons": report.Reasons,
	})
}

// approve auto-approves applications whose drafts passed verification in this run. A stored
// verdict from an earlier run never approves on its own. A HOLD decision keeps a verified
// application waiting for a person.
func (o *Orchestrator) approve(ctx context.Context, st *RunState) error {
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	app, err := o.deps.Store.GetOrCreateApplication(ctx, st.UserID, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load application: %w", err)
	}
	st.ApplicationID = app.ID

	reason := ""
	switch {
	case st.Report == nil:
		reason = "verification_missing"
	case !st.Report.Passed:
		reason = "verification_failed"
	case st.ManualDecision == DecisionHold:
		reason = "manual_hold"
	}
	if reason != "" {
		st.Status = app.Status
		return o.audit(ctx, st, types.ActionAutoApprovalBlocked, types.EntityApplication, app.ID.String(), map[string]any{
			"status": app.Status,
			"reason": reason,
		})
	}

	now := o.now().UTC()
	app.ApprovedBy = st.ActorID
	app.ApprovedAt = &now
	app.RejectionReason = ""
	if err := o.setStatus(ctx, job, app, types.StatusApproved); err != nil {
		return err
	}
	st.Status = types.StatusApproved
	return o.audit(ctx, st, types.ActionAutoApproved, types.EntityApplication, app.ID.String(), map[string]any{
		"status":   types.StatusApproved,
		"decision": st.ManualDecision,
	})
}

// autoFill submits the approved application. Every engine error becomes a failed outcome and
// anything short of "submitted" falls back to a reviewable packet.
func (o *Orchestrator) autoFill(ctx context.Context, st *RunState) error {
	if !st.hasApplication() {
		st.addError("No application id available for auto fill")
		st.Status = types.StatusReadyForReview
		st.AllowPacketWithoutApproval = true
		return nil
	}
	app, err := o.deps.Store.GetApplication(ctx, st.ApplicationID)
	if err != nil {
		st.Status = types.StatusReadyForReview
		st.AllowPacketWithoutApproval = true
		return fmt.Errorf("failed to load application: %w", err)
	}
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		st.Status = types.StatusReadyForReview
		st.AllowPacketWithoutApproval = true
		return fmt.Errorf("failed to load job: %w", err)
	}

	fields := o.catalog(ctx, st, job)
	resolved := o.deps.Resolver.Resolve(fields, job.Drafts, o.deps.Profile)
	req := submission.Request{
		URL:               job.URL,
		Platform:          job.Platform,
		Fields:            resolved,
		Drafts:            job.Drafts,
		Profile:           o.deps.Profile,
		SourceName:        job.SourceName,
		AutomationAllowed: job.AutomationAllowed,
	}

	out, subErr := o.submit(ctx, req)
	st.Submission = out
	result := out.Payload()
	if subErr != nil {
		result["error"] = subErr.Error()
	}

	attempt := &types.SubmissionAttempt{
		ApplicationID: app.ID,
		Status:        out.Status,
		Payload: map[string]any{
			"platform":      firstNonEmpty(job.Platform, "generic"),
			"field_payload": formfill.Redacted(resolved),
			"result":        result,
		},
		ResponseURL: out.ResponseURL,
		BlockReason: out.Reason,
	}
	if out.Status == submission.StatusSubmitted {
		now := o.now().UTC()
		attempt.SubmittedAt = &now
	}
	if _, err := o.deps.Store.AppendSubmissionAttempt(ctx, attempt); err != nil {
		st.addError("Failed to persist submission packet: %v", err)
	}

	if out.Status == submission.StatusSubmitted {
		if err := o.setStatus(ctx, job, app, types.StatusSubmitted); err != nil {
			return err
		}
		st.Status = types.StatusSubmitted
		st.AllowPacketWithoutApproval = false
		return o.audit(ctx, st, types.ActionSubmissionResult, types.EntityApplication, app.ID.String(), map[string]any{
			"status":       out.Status,
			"response_url": out.ResponseURL,
			"attempts":     out.Attempts,
		})
	}

	reason := firstNonEmpty(out.Reason, reasonNotCompleted)
	st.Status = types.StatusReadyForReview
	st.AllowPacketWithoutApproval = true
	st.addError("Submission pending: %s", reason)
	if err := o.setStatus(ctx, job, app, types.StatusReadyForReview); err != nil {
		return err
	}
	if out.Status == submission.StatusBlocked {
		return o.audit(ctx, st, types.ActionSubmissionBlocked, types.EntityApplication, app.ID.String(), map[string]any{
			"reason":       reason,
			"response_url": out.ResponseURL,
		})
	}
	return o.audit(ctx, st, types.ActionSubmissionResult, types.EntityApplication, app.ID.String(), map[string]any{
		"status":       out.Status,
		"reason":       reason,
		"response_url": out.ResponseURL,
		"attempts":     out.Attempts,
	})
}

// catalog returns the job's stored field catalog, fetching it when empty. Fetch errors are
// recorded and the stored (possibly empty) catalog is used.
func (o *Orchestrator) catalog(ctx context.Context, st *RunState, job *types.JobPosting) []types.FormField {
	if o.deps.Catalog != nil {
		fields, err := o.deps.Catalog.Ensure(ctx, job, st.ActorID)
		if err == nil {
			return fields
		}
		st.addError("Form fetch failed: %v", err)
		o.log.Warn("form fetch failed", "job_id", job.ID.String(), "error", err)
	}
	fields, err := o.deps.Store.ListFormFields(ctx, job.ID)
	if err != nil {
		st.addError("Failed to load form fields: %v", err)
		return nil
	}
	return fields
}

// submit never returns a nil outcome. A policy or fatal error from the engine is returned
// alongside a failed outcome that names it.
func (o *Orchestrator) submit(ctx context.Context, req submission.Request) (out *submission.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submission panicked: %v", r)
			out = &submission.Outcome{Status: submission.StatusFailed, Reason: reasonSubmissionError, ResponseURL: req.URL, Attempts: 1}
		}
	}()
	out, err = o.deps.Submitter.Submit(ctx, req)
	if err == nil && out != nil {
		return out, nil
	}
	if err == nil {
		err = errors.New("submission returned no outcome")
	}
	reason := reasonSubmissionError
	var policyErr *submission.PolicyError
	var fatalErr *submission.FatalError
	switch {
	case errors.As(err, &policyErr):
		reason = reasonAutomationDisallowed
	case errors.As(err, &fatalErr):
		reason = fatalErr.Kind
	}
	o.log.Warn("submission error", "url", req.URL, "reason", reason, "error", err)
	return &submission.Outcome{Status: submission.StatusFailed, Reason: reason, ResponseURL: req.URL, Attempts: 1}, err
}

// buildPacket needs an approved application or the fallback flag set by auto-fill.
func (o *Orchestrator) buildPacket(ctx context.Context, st *RunState) error {
	if !st.hasApplication() {
		st.addError("No application id available for packet build")
		return nil
	}
	app, err := o.deps.Store.GetApplication(ctx, st.ApplicationID)
	if err != nil {
		return fmt.Errorf("application not found for packet build: %w", err)
	}
	if app.Status != types.StatusApproved && !st.AllowPacketWithoutApproval {
		st.addError("Application not approved; packet build blocked")
		return nil
	}
	if o.deps.Packets == nil {
		st.addError("Packet builder not configured")
		return nil
	}
	artifacts, err := o.deps.Packets.Build(ctx, app)
	if err != nil {
		return fmt.Errorf("packet build failed: %w", err)
	}
	st.Artifacts = artifacts

	status := types.StatusPacketBuilt
	if st.AllowPacketWithoutApproval {
		status = types.StatusReadyForReview
	}
	job, err := o.deps.Store.GetJob(ctx, st.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if err := o.setStatus(ctx, job, app, status); err != nil {
		return err
	}
	st.Status = status
	return o.audit(ctx, st, types.ActionPacketBuilt, types.EntityApplication, app.ID.String(), map[string]any{
		"status":           status,
		"artifacts":        artifacts,
		"without_approval": st.AllowPacketWithoutApproval,
	})
}

func (o *Orchestrator) track(ctx context.Context, st *RunState) error {
	entityID := "unknown"
	if st.hasApplication() {
		entityID = st.ApplicationID.String()
	}
	return o.audit(ctx, st, types.ActionTrackerUpdated, types.EntityApplication, entityID, map[string]any{
		"status":      st.Status,
		"run_id":      st.RunID.String(),
		"job_id":      st.JobID.String(),
		"error_count": len(st.Errors),
		"auto_packet": st.AutoPacket,
	})
}

// close marks the job CLOSED and mirrors it onto an existing application so it stops counting
// toward the company cap.
func (o *Orchestrator) close(ctx context.Context, job *types.JobPosting, reason string) error {
	job.Status = types.StatusClosed
	job.CloseReason = reason
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to close job: %w", err)
	}
	app, err := o.deps.Store.GetApplicationByJob(ctx, job.ID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load application: %w", err)
	}
	app.Status = types.StatusClosed
	app.RejectionReason = reason
	if err := o.deps.Store.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("failed to close application: %w", err)
	}
	return nil
}

// setStatus writes status to both the job and its application.
func (o *Orchestrator) setStatus(ctx context.Context, job *types.JobPosting, app *types.Application, status types.JobStatus) error {
	job.Status = status
	if err := o.deps.Store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job status %s: %w", status, err)
	}
	app.Status = status
	if err := o.deps.Store.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("failed to save application status %s: %w", status, err)
	}
	return nil
}

// structuredFor prefers the fields parsed in this run, then the stored ones, then the bare job.
func structuredFor(st *RunState, job *types.JobPosting) *types.StructuredJob {
	switch {
	case st.Structured != nil:
		return st.Structured
	case job.Structured != nil:
		return job.Structured
	}
	return &types.StructuredJob{
		Title:         job.Title,
		Company:       job.Company,
		Location:      job.Location,
		Seniority:     strings.TrimSpace(job.Seniority),
		PostingActive: true,
		PostedAt:      job.PostedAt,
	}
}
