// Package rendering renders the resume and cover letter of an application packet as LaTeX.
package rendering

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/jonathan/apply-autopilot/internal/types"
)

//go:embed templates/*.tex.tmpl
var builtinTemplates embed.FS

const (
	resumeTemplate = "resume.tex.tmpl"
	letterTemplate = "cover_letter.tex.tmpl"
)

// ResumeData is passed to the resume template. Values are raw; the template escapes them.
type ResumeData struct {
	Name       string
	Contact    []string
	Summary    string
	Highlights []string
	Companies  []CompanySection
	Education  []types.Education
	Skills     string
}

// CompanySection is a company with one or more roles.
type CompanySection struct {
	Company string
	Roles   []RoleSection
}

// RoleSection is a role within a company with merged date ranges.
type RoleSection struct {
	Role       string
	DateRanges string // e.g. "2020-08 -- 2021-10, 2023-07 -- Present"
	Bullets    []string
}

// CoverLetterData is passed to the cover letter template.
type CoverLetterData struct {
	Name       string
	Email      string
	Company    string
	Date       string
	Paragraphs []string
}

// Renderer executes the resume and cover letter templates.
type Renderer struct {
	resume *template.Template
	letter *template.Template
}

// NewRenderer loads templates from dir, falling back to the built-in templates for any file
// dir does not contain. An empty dir uses the built-ins only.
func NewRenderer(dir string) (*Renderer, error) {
	resume, err := loadTemplate(dir, resumeTemplate)
	if err != nil {
		return nil, err
	}
	letter, err := loadTemplate(dir, letterTemplate)
	if err != nil {
		return nil, err
	}
	return &Renderer{resume: resume, letter: letter}, nil
}

func loadTemplate(dir, name string) (*template.Template, error) {
	if dir != "" {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return parseTemplate(path)
		}
	}
	content, err := builtinTemplates.ReadFile("templates/" + name)
	if err != nil {
		return nil, &TemplateError{Name: name, Message: "built-in template missing", Cause: err}
	}
	return parseContent(name, string(content))
}

// parseTemplate reads and parses a LaTeX template file.
func parseTemplate(templatePath string) (*template.Template, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TemplateError{Name: templatePath, Message: "template file not found", Cause: err}
		}
		return nil, &TemplateError{Name: templatePath, Message: "failed to read template file", Cause: err}
	}
	return parseContent(filepath.Base(templatePath), string(content))
}

func parseContent(name, content string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(template.FuncMap{"escape": EscapeLaTeX}).Parse(content)
	if err != nil {
		return nil, &TemplateError{Name: name, Message: "failed to parse template", Cause: err}
	}
	return tmpl, nil
}

// RenderResume renders a resume from the profile and the drafted summary and highlights.
func (r *Renderer) RenderResume(p *types.Profile, drafts *types.Drafts) (string, error) {
	if p == nil {
		return "", &RenderError{Message: "profile is required"}
	}
	data := ResumeData{
		Name:      p.PersonalInfo.Name,
		Companies: groupByCompanyAndRole(p.Experience),
		Education: p.Education,
		Skills:    strings.Join(p.Skills, ", "),
	}
	for _, c := range []string{p.PersonalInfo.Email, p.PersonalInfo.Phone, p.PersonalInfo.LinkedIn, p.PersonalInfo.GitHub} {
		if c = strings.TrimSpace(c); c != "" {
			data.Contact = append(data.Contact, c)
		}
	}
	data.Summary = p.Summary
	if drafts != nil {
		data.Highlights = drafts.BulletOrdering
	}
	return execute(r.resume, data)
}

// RenderCoverLetter renders the body of a drafted letter into the letter template.
func (r *Renderer) RenderCoverLetter(p *types.Profile, company, letter string, date time.Time) (string, error) {
	paragraphs := LetterBody(letter)
	if len(paragraphs) == 0 {
		return "", &RenderError{Message: "cover letter is empty"}
	}
	data := CoverLetterData{
		Company:    company,
		Date:       date.Format("January 2, 2006"),
		Paragraphs: paragraphs,
	}
	if p != nil {
		data.Name = p.PersonalInfo.Name
		data.Email = p.PersonalInfo.Email
	}
	return execute(r.letter, data)
}

func execute(tmpl *template.Template, data any) (string, error) {
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", &TemplateError{Name: tmpl.Name(), Message: "failed to execute template", Cause: err}
	}
	return out.String(), nil
}

// LetterBody returns the paragraphs between the salutation and the closing of a drafted
// letter. A letter without a "Dear" line is returned whole, split into paragraphs.
func LetterBody(letter string) []string {
	lines := strings.Split(strings.ReplaceAll(letter, "\r\n", "\n"), "\n")
	start, end := -1, len(lines)
	for i, l := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(l)), "dear ") {
			start = i + 1
			break
		}
	}
	if start >= 0 {
		for i := start; i < len(lines); i++ {
			lower := strings.ToLower(strings.TrimSpace(lines[i]))
			if strings.HasPrefix(lower, "sincerely") || strings.HasPrefix(lower, "best regards") || strings.HasPrefix(lower, "regards") {
				end = i
				break
			}
		}
		lines = lines[start:end]
	}

	var paragraphs []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paragraphs = append(paragraphs, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, l := range lines {
		if l = strings.TrimSpace(l); l == "" {
			flush()
			continue
		}
		cur = append(cur, l)
	}
	flush()
	return paragraphs
}

type roleKey struct {
	Company string
	Role    string
}

type dateRange struct {
	StartDate string
	EndDate   string
}

// groupByCompanyAndRole groups experience by company, then role, merging date ranges. Companies
// are ordered by their latest end date, current roles first.
func groupByCompanyAndRole(experience []types.Experience) []CompanySection {
	if len(experience) == 0 {
		return nil
	}
	var companyOrder []string
	roleOrder := make(map[string][]string)
	ranges := make(map[roleKey][]dateRange)
	bullets := make(map[roleKey][]string)
	latest := make(map[string]string)

	for _, e := range experience {
		company := strings.TrimSpace(e.Company)
		if company == "" {
			continue
		}
		key := roleKey{Company: company, Role: strings.TrimSpace(e.Title)}
		if _, ok := roleOrder[company]; !ok {
			companyOrder = append(companyOrder, company)
		}
		if _, ok := ranges[key]; !ok {
			roleOrder[company] = append(roleOrder[company], key.Role)
			ranges[key] = []dateRange{}
		}
		if e.StartDate != "" || e.EndDate != "" {
			ranges[key] = append(ranges[key], dateRange{StartDate: e.StartDate, EndDate: e.EndDate})
		}
		bullets[key] = append(bullets[key], e.Bullets...)
		if prev, ok := latest[company]; !ok || laterEnd(e.EndDate, prev) {
			latest[company] = e.EndDate
		}
	}

	companies := make([]CompanySection, 0, len(companyOrder))
	for _, company := range companyOrder {
		section := CompanySection{Company: company}
		for _, role := range roleOrder[company] {
			key := roleKey{Company: company, Role: role}
			section.Roles = append(section.Roles, RoleSection{
				Role:       role,
				DateRanges: mergeDateRanges(ranges[key]),
				Bullets:    bullets[key],
			})
		}
		companies = append(companies, section)
	}

	sort.SliceStable(companies, func(i, j int) bool {
		return laterEnd(latest[companies[i].Company], latest[companies[j].Company])
	})
	return companies
}

// laterEnd reports whether end date a is strictly later than b. Dates are YYYY-MM strings.
func laterEnd(a, b string) bool {
	if isCurrent(b) {
		return false
	}
	return isCurrent(a) || a > b
}

// isCurrent treats "present" and a missing end date as ongoing.
func isCurrent(end string) bool {
	return end == "" || strings.EqualFold(end, "present")
}

// mergeDateRanges formats unique ranges chronologically as a comma-separated string.
func mergeDateRanges(in []dateRange) string {
	seen := make(map[dateRange]bool)
	var ranges []dateRange
	for _, r := range in {
		if !seen[r] {
			seen[r] = true
			ranges = append(ranges, r)
		}
	}
	if len(ranges) == 0 {
		return ""
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].StartDate < ranges[j].StartDate })

	parts := make([]string, len(ranges))
	for i, r := range ranges {
		end := r.EndDate
		if isCurrent(end) {
			end = "Present"
		}
		parts[i] = fmt.Sprintf("%s -- %s", r.StartDate, end)
	}
	return strings.Join(parts, ", ")
}
