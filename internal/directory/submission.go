package directory

import "time"

// Submission moderation states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Geocode statuses recorded on a submission.
const (
	GeocodeSuccess   = "success"
	GeocodeNoResults = "no_results"
	GeocodeError     = "error"
	GeocodeSkipped   = "skipped"
	GeocodeLinked    = "linked"
	GeocodeManual    = "manual"
)

// Submission is a user-submitted institution record awaiting moderation.
type Submission struct {
	ID string `json:"id"`

	// Contact
	ContactName   string `json:"contactName"`
	ContactEmail  string `json:"contactEmail,omitempty"`
	SubmitterType string `json:"submitterType,omitempty"`

	// Institution as typed by the submitter
	InstitutionName        string `json:"institutionName"`
	InstitutionCountry     string `json:"institutionCountry,omitempty"`
	InstitutionCountryName string `json:"institutionCountryName,omitempty"`
	InstitutionCity        string `json:"institutionCity,omitempty"`
	InstitutionWebsite     string `json:"institutionWebsite,omitempty"`
	LocationQuery          string `json:"locationQuery,omitempty"`

	LeadershipApproach string `json:"leadershipApproach"`

	// Coordinates as submitted and as resolved by geocoding or linking
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	ResolvedLatitude  *float64 `json:"resolvedLatitude,omitempty"`
	ResolvedLongitude *float64 `json:"resolvedLongitude,omitempty"`
	GeocodeStatus     string   `json:"geocodeStatus"`
	GeocodeResponse   string   `json:"geocodeResponse,omitempty"` // raw JSON

	SubmissionIP  string `json:"submissionIp,omitempty"`
	InstitutionID string `json:"institutionId,omitempty"`
	DuplicateOfID string `json:"duplicateOfId,omitempty"`

	// Moderation
	Status          string     `json:"status"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Coordinates returns the best known coordinates of the submission,
// preferring resolved over submitted values per axis.
func (s Submission) Coordinates() (lat, lng float64, ok bool) {
	la := s.ResolvedLatitude
	if la == nil {
		la = s.Latitude
	}
	lo := s.ResolvedLongitude
	if lo == nil {
		lo = s.Longitude
	}
	if la == nil || lo == nil {
		return 0, 0, false
	}
	return *la, *lo, true
}

// RequestLog is one rate-limited request recorded for counting.
type RequestLog struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}
