// internal/domain/models/tutor.go
package models

// TutorSummary is one row of a tutor search.
type TutorSummary struct {
	TutorID      string   `json:"tutor_id"`
	Name         string   `json:"name"`
	Bio          string   `json:"bio"`
	Subjects     []string `json:"subjects"`
	Availability []string `json:"availability"`
	IsVerified   bool     `json:"is_verified"`
}

// TutorDetail is the public profile of one tutor.
type TutorDetail struct {
	TutorSummary
	SchedulingLink               *string `json:"scheduling_link"`
	TranscriptVerificationStatus *string `json:"transcript_verification_status"`
	TranscriptVerifiedAt         *string `json:"transcript_verified_at"`
}

// TutorSearch holds the optional search filters. Subject and Availability
// are substring matches on the server.
type TutorSearch struct {
	Subject      string
	Availability string
	VerifiedOnly bool
}
