// Package packet writes the reviewable bundle for an application: rendered resume and cover
// letter, the source resume and transcript, the application payload and the verification
// report. Every file is recorded as an artifact with its checksum.
package packet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/apply-autopilot/internal/db"
	"github.com/jonathan/apply-autopilot/internal/logging"
	"github.com/jonathan/apply-autopilot/internal/rendering"
	"github.com/jonathan/apply-autopilot/internal/types"
)

// File names inside a job's packet directory.
const (
	resumeTeXFile    = "resume.tex"
	resumePDFFile    = "resume.pdf"
	coverLetterFile  = "cover_letter.tex"
	transcriptFile   = "transcript.pdf"
	payloadFile      = "application_payload.json"
	verificationFile = "verification_report.json"
)

// Options locates the packet output and the user's source documents.
type Options struct {
	OutputDir         string
	ResumePDFPath     string
	TranscriptPDFPath string
}

// Builder builds packets under OutputDir/<job id>.
type Builder struct {
	store    db.Store
	renderer *rendering.Renderer
	profile  *types.Profile
	opts     Options
	log      *logging.Logger
	now      func() time.Time
}

// NewBuilder returns a Builder. profile is the user's ground-truth profile.
func NewBuilder(store db.Store, renderer *rendering.Renderer, profile *types.Profile, opts Options, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.Nop()
	}
	if profile == nil {
		profile = &types.Profile{}
	}
	return &Builder{
		store:    store,
		renderer: renderer,
		profile:  profile,
		opts:     opts,
		log:      log.With("component", "packet"),
		now:      time.Now,
	}
}

type artifactFile struct {
	kind string
	path string
}

// Build writes the packet for app and returns artifact type to path. Optional documents that
// are no longer wanted are removed so a rebuilt packet never carries stale files.
func (b *Builder) Build(ctx context.Context, app *types.Application) (map[string]string, error) {
	if app == nil {
		return nil, errors.New("application is required")
	}
	job, err := b.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job for packet: %w", err)
	}
	structured := job.Structured
	if structured == nil {
		structured = &types.StructuredJob{}
	}
	drafts := job.Drafts
	if drafts == nil {
		drafts = &types.Drafts{}
	}

	dir := filepath.Join(b.opts.OutputDir, job.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create packet directory: %w", err)
	}
	var files []artifactFile

	resume, err := b.renderer.RenderResume(b.profile, drafts)
	if err != nil {
		return nil, fmt.Errorf("failed to render resume: %w", err)
	}
	resumeTeX := filepath.Join(dir, resumeTeXFile)
	if err := os.WriteFile(resumeTeX, []byte(resume), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write resume: %w", err)
	}
	files = append(files, artifactFile{types.ArtifactResumeTeX, resumeTeX})

	resumePDF := filepath.Join(dir, resumePDFFile)
	resumeSource := ""
	if ok, err := copyIfExists(b.opts.ResumePDFPath, resumePDF); err != nil {
		return nil, fmt.Errorf("failed to copy resume pdf: %w", err)
	} else if ok {
		resumeSource = b.opts.ResumePDFPath
		files = append(files, artifactFile{types.ArtifactResumePDF, resumePDF})
	}

	coverPath := filepath.Join(dir, coverLetterFile)
	coverGenerated := structured.RequiresCoverLetter && strings.TrimSpace(drafts.CoverLetter) != ""
	if coverGenerated {
		letter, err := b.renderer.RenderCoverLetter(b.profile, firstNonEmpty(job.Company, "Hiring Team"), drafts.CoverLetter, b.now())
		if err != nil {
			return nil, fmt.Errorf("failed to render cover letter: %w", err)
		}
		if err := os.WriteFile(coverPath, []byte(letter), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write cover letter: %w", err)
		}
		files = append(files, artifactFile{types.ArtifactCoverLetterTeX, coverPath})
	} else {
		removeStale(coverPath)
	}

	transcriptPath := filepath.Join(dir, transcriptFile)
	transcriptSelected := ""
	if structured.RequiresTranscript {
		ok, err := copyIfExists(b.opts.TranscriptPDFPath, transcriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to copy transcript: %w", err)
		}
		if ok {
			transcriptSelected = transcriptPath
			files = append(files, artifactFile{types.ArtifactTranscriptPDF, transcriptPath})
		}
	} else {
		removeStale(transcriptPath)
	}

	attempts, err := b.store.ListSubmissionAttempts(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission attempts: %w", err)
	}
	summary := b.summary(job, app, structured, drafts, plan{
		ResumeSelectedPath:     resumePDF,
		ResumeSourcePath:       resumeSource,
		RequiresCoverLetter:    structured.RequiresCoverLetter,
		CoverLetterGenerated:   coverGenerated,
		RequiresTranscript:     structured.RequiresTranscript,
		TranscriptSelectedPath: transcriptSelected,
	}, attempts)
	if resumeSource == "" {
		summary.SubmissionPlan.ResumeSelectedPath = resumeTeX
	}

	payloadPath := filepath.Join(dir, payloadFile)
	if err := writeJSON(payloadPath, summary); err != nil {
		return nil, err
	}
	files = append(files, artifactFile{types.ArtifactPayloadJSON, payloadPath})

	report := app.VerificationReport
	if report == nil {
		report = &types.VerificationReport{Reasons: []string{}}
	}
	reportPath := filepath.Join(dir, verificationFile)
	if err := writeJSON(reportPath, report); err != nil {
		return nil, err
	}
	files = append(files, artifactFile{types.ArtifactVerificationRpt, reportPath})

	out := make(map[string]string, len(files))
	for _, f := range files {
		sum, size, err := checksum(f.path)
		if err != nil {
			return nil, err
		}
		if _, err := b.store.AddArtifact(ctx, &types.Artifact{
			ApplicationID:  app.ID,
			Type:           f.kind,
			Path:           f.path,
			ChecksumSHA256: sum,
			SizeBytes:      size,
		}); err != nil {
			return nil, fmt.Errorf("failed to record artifact %s: %w", f.kind, err)
		}
		out[f.kind] = f.path
	}
	b.log.Info("packet built", "job_id", job.ID.String(), "output_dir", dir, "artifacts", len(out))
	return out, nil
}

// payload is the machine-readable summary a reviewer or a later submission reads.
type payload struct {
	JobID                 string                      `json:"job_id"`
	ApplicationID         string                      `json:"application_id"`
	UserID                string                      `json:"user_id"`
	Job                   jobSummary                  `json:"job"`
	ApplicationQuestions  []string                    `json:"application_questions"`
	ApplicationAnswers    []types.QuestionAnswer      `json:"application_answers"`
	Drafts                *types.Drafts               `json:"drafts"`
	ClaimsTable           []types.Claim               `json:"claims_table"`
	VerificationPassed    *bool                       `json:"verification_passed"`
	SubmissionPlan        plan                        `json:"submission_plan"`
	CandidateLinks        map[string]string           `json:"candidate_links"`
	InternshipPreferences types.InternshipPreferences `json:"internship_preferences"`
	LatestSubmission      *types.SubmissionAttempt    `json:"submission_packet"`
}

type jobSummary struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location"`
	URL      string `json:"url"`
}

type plan struct {
	ResumeSelectedPath     string   `json:"resume_selected_path"`
	ResumeSourcePath       string   `json:"resume_source_path"`
	RequiresCoverLetter    bool     `json:"requires_cover_letter"`
	CoverLetterGenerated   bool     `json:"cover_letter_generated"`
	RequiresTranscript     bool     `json:"requires_transcript"`
	TranscriptSelectedPath string   `json:"transcript_selected_path"`
	QuestionsAnswered      []string `json:"questions_answered"`
}

func (b *Builder) summary(job *types.JobPosting, app *types.Application, s *types.StructuredJob, d *types.Drafts, p plan, attempts []types.SubmissionAttempt) *payload {
	questions := []string{}
	for _, q := range s.ApplicationQuestions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	answers := []types.QuestionAnswer{}
	p.QuestionsAnswered = []string{}
	for _, qa := range d.QuestionAnswerPairs {
		if strings.TrimSpace(qa.Question) == "" {
			continue
		}
		answers = append(answers, qa)
		if strings.TrimSpace(qa.Answer) != "" {
			p.QuestionsAnswered = append(p.QuestionsAnswered, strings.TrimSpace(qa.Question))
		}
	}
	links := map[string]string{}
	for k, v := range map[string]string{"github_url": b.profile.PersonalInfo.GitHub, "linkedin_url": b.profile.PersonalInfo.LinkedIn} {
		if v != "" {
			links[k] = v
		}
	}
	out := &payload{
		JobID:                 job.ID.String(),
		ApplicationID:         app.ID.String(),
		UserID:                app.UserID,
		Job:                   jobSummary{Title: job.Title, Company: job.Company, Location: job.Location, URL: job.URL},
		ApplicationQuestions:  questions,
		ApplicationAnswers:    answers,
		Drafts:                d,
		ClaimsTable:           app.ClaimsTable,
		VerificationPassed:    app.VerificationPassed,
		SubmissionPlan:        p,
		CandidateLinks:        links,
		InternshipPreferences: b.profile.InternshipPreferences,
	}
	if out.ClaimsTable == nil {
		out.ClaimsTable = []types.Claim{}
	}
	if n := len(attempts); n > 0 {
		out.LatestSubmission = &attempts[n-1]
	}
	return out
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// copyIfExists copies src to dst when src is a regular file. A missing or empty src is not an
// error; the document is simply left out.
func copyIfExists(src, dst string) (bool, error) {
	if strings.TrimSpace(src) == "" {
		removeStale(dst)
		return false, nil
	}
	info, err := os.Stat(src)
	if err != nil || !info.Mode().IsRegular() {
		removeStale(dst)
		return false, nil
	}
	in, err := os.Open(src)
	if err != nil {
		return false, err
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return false, err
	}
	return true, out.Close()
}

func removeStale(path string) {
	_ = os.Remove(path)
}

func checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
