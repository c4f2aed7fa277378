package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://company.wd5.myworkdayjobs.com/en-US/External", PlatformWorkday},
		{"https://acme.wd1.example.com/careers/job/1", PlatformWorkday},
		{"https://job-boards.greenhouse.io/doordashusa/jobs/7063751", PlatformGreenhouse},
		{"https://boards.greenhouse.io/company/jobs/123", PlatformGreenhouse},
		{"https://jobs.lever.co/company/job-id", PlatformLever},
		{"https://jobs.smartrecruiters.com/Acme/123", PlatformSmartRecruiters},
		{"HTTPS://JOBS.LEVER.CO/ACME/1", PlatformLever},
		{"https://example.com/jobs", PlatformGeneric},
		{"https://linkedin.com/jobs/123", PlatformGeneric},
		{"::bad url::", PlatformGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestPlatform_MultiStep(t *testing.T) {
	assert.True(t, PlatformWorkday.MultiStep())
	assert.False(t, PlatformGreenhouse.MultiStep())
	assert.False(t, PlatformGeneric.MultiStep())
}

func TestPlatformSelectors(t *testing.T) {
	assert.Contains(t, PlatformContentSelectors(PlatformGreenhouse), ".job__description")
	assert.Contains(t, PlatformContentSelectors(PlatformGeneric), ".job-description")
	assert.Contains(t, PlatformNoiseSelectors(PlatformGreenhouse), ".voluntary-self-id")
	assert.Contains(t, PlatformNoiseSelectors(PlatformGeneric), "form")
}
