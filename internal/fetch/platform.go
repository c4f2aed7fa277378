package fetch

import "strings"

// Platform represents a known applicant tracking system.
type Platform string

const (
	PlatformWorkday         Platform = "workday"
	PlatformGreenhouse      Platform = "greenhouse"
	PlatformLever           Platform = "lever"
	PlatformSmartRecruiters Platform = "smartrecruiters"
	PlatformGeneric         Platform = "generic"
)

// DetectPlatform identifies the tracking system from anywhere in the URL.
// Workday tenants are matched by "myworkdayjobs.com" or a ".wd<N>" host segment.
func DetectPlatform(rawURL string) Platform {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "myworkdayjobs.com"), strings.Contains(u, ".wd"):
		return PlatformWorkday
	case strings.Contains(u, "greenhouse"):
		return PlatformGreenhouse
	case strings.Contains(u, "lever.co"):
		return PlatformLever
	case strings.Contains(u, "smartrecruiters"):
		return PlatformSmartRecruiters
	default:
		return PlatformGeneric
	}
}

// MultiStep reports whether applications on p span several paginated pages.
func (p Platform) MultiStep() bool {
	return p == PlatformWorkday
}

// PlatformContentSelectors returns content selectors tuned for a platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{".job__description.body", ".job__description", "#content", ".job-post-container"}
	case PlatformLever:
		return []string{".posting-page", ".section-wrapper.page-full-width", ".posting-description", ".content"}
	case PlatformWorkday:
		return []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']", ".job-description"}
	case PlatformSmartRecruiters:
		return []string{".job-sections", "[itemprop='description']", ".job-description"}
	default:
		return JobPostingSelectors()
	}
}

// PlatformNoiseSelectors returns elements to strip before text extraction.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		"form",
		"#application-form",
		".application-form",
		".apply-button-container",
		".eeo-statement",
		".voluntary-disclosure",
		".self-identification",
		".social-share",
		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformGreenhouse:
		return append(common, ".application--wrapper", ".voluntary-self-id", "#usa_self_id_section")
	case PlatformLever:
		return append(common, ".apply-section", ".posting-apply")
	case PlatformWorkday:
		return append(common, "[data-automation-id='applyButton']", "[data-automation-id='similarJobs']")
	default:
		return common
	}
}
