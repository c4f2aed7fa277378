package types

import (
	"time"

	"github.com/google/uuid"
)

// Artifact types written by the packet builder.
const (
	ArtifactResumeTeX       = "resume_tex"
	ArtifactResumePDF       = "resume_pdf"
	ArtifactCoverLetterTeX  = "cover_letter_tex"
	ArtifactTranscriptPDF   = "transcript_pdf"
	ArtifactPayloadJSON     = "application_payload_json"
	ArtifactVerificationRpt = "verification_report_json"
)

// Artifact is one file produced for an application packet.
type Artifact struct {
	ID             uuid.UUID `json:"id"`
	ApplicationID  uuid.UUID `json:"application_id"`
	Type           string    `json:"artifact_type"`
	Path           string    `json:"path"`
	ChecksumSHA256 string    `json:"checksum_sha256"`
	SizeBytes      int64     `json:"size_bytes"`
	CreatedAt      time.Time `json:"created_at"`
}
