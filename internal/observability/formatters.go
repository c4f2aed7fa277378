// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/apply-autopilot/internal/batch"
	"github.com/jonathan/apply-autopilot/internal/pipeline"
	"github.com/jonathan/apply-autopilot/internal/submission"
	"github.com/jonathan/apply-autopilot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintRunState outputs the outcome of one pipeline run: route, score, verification,
// submission and artifacts.
func (p *Printer) PrintRunState(st *pipeline.RunState) {
	if st == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", st.JobID))
	if st.Structured != nil && (st.Structured.Title != "" || st.Structured.Company != "") {
		sb.WriteString(fmt.Sprintf("Role:     %s @ %s\n", st.Structured.Title, st.Structured.Company))
	}
	sb.WriteString(fmt.Sprintf("Status:   %s\n", st.Status))
	sb.WriteString(fmt.Sprintf("Decision: %s\n", st.ManualDecision))
	if st.Score != nil {
		sb.WriteString(fmt.Sprintf("Score:    %.2f\n", *st.Score))
	}
	sb.WriteString(fmt.Sprintf("Route:    %s\n", strings.Join(st.Visited, " → ")))

	if len(st.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		writeList(&sb, st.Errors)
	}
	p.printBox("PIPELINE RUN", strings.TrimSuffix(sb.String(), "\n"))

	p.PrintScoreBreakdown(st.ScoreBreakdown)
	p.PrintVerification(st.Report)
	p.PrintSubmission(st.Submission)
	p.PrintArtifacts(st.Artifacts)
}

// PrintScoreBreakdown outputs the fit score components in name order.
func (p *Printer) PrintScoreBreakdown(breakdown map[string]float64) {
	if len(breakdown) == 0 {
		return
	}
	names := make([]string, 0, len(breakdown))
	for name := range breakdown {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("%-28s %.2f\n", name, breakdown[name]))
	}
	p.printBox("SCORE BREAKDOWN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintVerification outputs whether the drafts passed grounding checks and why not.
func (p *Printer) PrintVerification(report *types.VerificationReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	verdict := "PASSED"
	if !report.Passed {
		verdict = "FAILED"
	}
	sb.WriteString(fmt.Sprintf("Result: %s (%d claims checked)\n", verdict, report.ClaimsChecked))
	if len(report.Reasons) > 0 {
		sb.WriteString("\nReasons:\n")
		writeList(&sb, report.Reasons)
	}
	p.printBox("VERIFICATION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSubmission outputs the form automation outcome and its step transcript.
func (p *Printer) PrintSubmission(out *submission.Outcome) {
	if out == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", out.Status))
	if out.Reason != "" {
		sb.WriteString(fmt.Sprintf("Reason:   %s\n", out.Reason))
	}
	sb.WriteString(fmt.Sprintf("Filled:   %d field(s) in %d attempt(s)\n", out.FilledCount, out.Attempts))
	if out.ResponseURL != "" {
		sb.WriteString(fmt.Sprintf("URL:      %s\n", out.ResponseURL))
	}
	if len(out.Steps) > 0 {
		sb.WriteString(fmt.Sprintf("\nSteps: %d\n", len(out.Steps)))
	}
	p.printBox("SUBMISSION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintArtifacts outputs the packet files by kind.
func (p *Printer) PrintArtifacts(artifacts map[string]string) {
	if len(artifacts) == 0 {
		return
	}
	kinds := make([]string, 0, len(artifacts))
	for kind := range artifacts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var sb strings.Builder
	for _, kind := range kinds {
		sb.WriteString(fmt.Sprintf("%s:\n  %s\n", kind, artifacts[kind]))
	}
	p.printBox("PACKET", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchResults outputs one line per selected job and a status tally.
func (p *Printer) PrintBatchResults(results []batch.Result) {
	if len(results) == 0 {
		p.printBox("BATCH", "No eligible jobs")
		return
	}

	tally := make(map[string]int)
	var sb strings.Builder
	for i, r := range results {
		tally[r.Status]++
		company := r.Company
		if company == "" {
			company = "(unknown company)"
		}
		sb.WriteString(fmt.Sprintf("#%d  %-22s %s\n", i+1, clip(company, 22), r.Status))
		if r.SubmissionStatus != "" {
			sb.WriteString(fmt.Sprintf("    submission: %s", r.SubmissionStatus))
			if r.SubmissionReason != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", r.SubmissionReason))
			}
			sb.WriteString("\n")
		}
	}

	statuses := make([]string, 0, len(tally))
	for s := range tally {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	sb.WriteString("\n")
	for _, s := range statuses {
		sb.WriteString(fmt.Sprintf("%s: %d\n", s, tally[s]))
	}
	p.printBox(fmt.Sprintf("BATCH (%d jobs)", len(results)), strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, items []string) {
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}
