package types

// Profile is the single user's ground-truth profile.
type Profile struct {
	PersonalInfo          PersonalInfo          `json:"personal_info" yaml:"personal_info"`
	Summary               string                `json:"summary,omitempty" yaml:"summary,omitempty"`
	Skills                []string              `json:"skills,omitempty" yaml:"skills,omitempty"`
	Experience            []Experience          `json:"experience,omitempty" yaml:"experience,omitempty"`
	Education             []Education           `json:"education,omitempty" yaml:"education,omitempty"`
	Projects              []Project             `json:"projects,omitempty" yaml:"projects,omitempty"`
	AllowedClaims         []AllowedClaim        `json:"allowed_claims,omitempty" yaml:"allowed_claims,omitempty"`
	PreferredSeniority    []string              `json:"preferred_seniority,omitempty" yaml:"preferred_seniority,omitempty"`
	PreferredLocations    []string              `json:"preferred_locations,omitempty" yaml:"preferred_locations,omitempty"`
	InternshipPreferences InternshipPreferences `json:"internship_preferences" yaml:"internship_preferences"`
	GeneralMeta           GeneralMeta           `json:"general_meta" yaml:"general_meta"`
}

// PersonalInfo holds contact details.
type PersonalInfo struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone    string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin,omitempty"`
	GitHub   string `json:"github,omitempty" yaml:"github,omitempty"`
}

// Experience is one employment entry.
type Experience struct {
	Company    string   `json:"company" yaml:"company"`
	Title      string   `json:"title" yaml:"title"`
	StartDate  string   `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Highlights string   `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	Bullets    []string `json:"bullets,omitempty" yaml:"bullets,omitempty"`
}

// Education is one school entry.
type Education struct {
	School  string `json:"school" yaml:"school"`
	Degree  string `json:"degree,omitempty" yaml:"degree,omitempty"`
	GPA     string `json:"gpa,omitempty" yaml:"gpa,omitempty"`
	EndDate string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Project is a side or school project.
type Project struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// AllowedClaim is a claim (optionally with a metric) the user has approved for reuse.
type AllowedClaim struct {
	Claim  string `json:"claim" yaml:"claim"`
	Metric string `json:"metric,omitempty" yaml:"metric,omitempty"`
}

// InternshipPreferences narrows targeting to internships.
type InternshipPreferences struct {
	TargetInternshipsOnly     bool     `json:"target_internships_only" yaml:"target_internships_only"`
	TargetRoleFamilies        []string `json:"target_role_families,omitempty" yaml:"target_role_families,omitempty"`
	AllTechRoles              bool     `json:"all_tech_roles,omitempty" yaml:"all_tech_roles,omitempty"`
	PreferredLocations        []string `json:"preferred_locations,omitempty" yaml:"preferred_locations,omitempty"`
	MaxApplicationsPerCompany *int     `json:"max_applications_per_company,omitempty" yaml:"max_applications_per_company,omitempty"`
}

// GeneralMeta holds structured answers to common application questions.
type GeneralMeta struct {
	WorkAuthorization WorkAuthorization `json:"work_authorization" yaml:"work_authorization"`
	UniversityYear    string            `json:"university_year,omitempty" yaml:"university_year,omitempty"`
	GraduationYear    string            `json:"graduation_year,omitempty" yaml:"graduation_year,omitempty"`
	GPA               string            `json:"gpa,omitempty" yaml:"gpa,omitempty"`
	AvailabilityTerms []string          `json:"availability_terms,omitempty" yaml:"availability_terms,omitempty"`
}

// WorkAuthorization records per-country authorization and sponsorship needs.
type WorkAuthorization struct {
	USAuthorized              bool `json:"us_authorized" yaml:"us_authorized"`
	RequiresSponsorshipUS     bool `json:"requires_sponsorship_us" yaml:"requires_sponsorship_us"`
	CanadaAuthorized          bool `json:"canada_authorized" yaml:"canada_authorized"`
	RequiresSponsorshipCanada bool `json:"requires_sponsorship_canada" yaml:"requires_sponsorship_canada"`
}
