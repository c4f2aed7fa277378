package types

// JobStatus is the workflow status shared by jobs and their applications.
type JobStatus string

// Workflow statuses in pipeline order. CLOSED is reachable from PARSED or SCORED.
const (
	StatusDiscovered     JobStatus = "DISCOVERED"
	StatusParsed         JobStatus = "PARSED"
	StatusScored         JobStatus = "SCORED"
	StatusDrafted        JobStatus = "DRAFTED"
	StatusVerified       JobStatus = "VERIFIED"
	StatusReadyForReview JobStatus = "READY_FOR_REVIEW"
	StatusApproved       JobStatus = "APPROVED"
	StatusPacketBuilt    JobStatus = "PACKET_BUILT"
	StatusSubmitted      JobStatus = "SUBMITTED"
	StatusClosed         JobStatus = "CLOSED"
)

// AllStatuses lists every valid status.
var AllStatuses = []JobStatus{
	StatusDiscovered,
	StatusParsed,
	StatusScored,
	StatusDrafted,
	StatusVerified,
	StatusReadyForReview,
	StatusApproved,
	StatusPacketBuilt,
	StatusSubmitted,
	StatusClosed,
}

// IsValid reports whether s is one of the known statuses.
func (s JobStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further pipeline work applies.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusClosed
}

func (s JobStatus) String() string {
	return string(s)
}

// ParseJobStatus converts a string into a JobStatus, returning false if unknown.
func ParseJobStatus(raw string) (JobStatus, bool) {
	s := JobStatus(raw)
	return s, s.IsValid()
}
