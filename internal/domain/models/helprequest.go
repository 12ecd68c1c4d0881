// internal/domain/models/helprequest.go
package models

// HelpRequestStatus is the lifecycle state of a help request.
type HelpRequestStatus string

const (
	StatusPending  HelpRequestStatus = "pending"
	StatusAccepted HelpRequestStatus = "accepted"
	StatusDeclined HelpRequestStatus = "declined"
	StatusClosed   HelpRequestStatus = "closed"
)

// IsValid reports whether s is one of the four known statuses.
func (s HelpRequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s HelpRequestStatus) IsTerminal() bool {
	return s == StatusDeclined || s == StatusClosed
}

// CanTransition reports whether actor may move a request from one status
// to another. Tutors accept or decline pending requests; students close
// accepted ones.
func CanTransition(from, to HelpRequestStatus, actor Role) bool {
	switch {
	case from == StatusPending && (to == StatusAccepted || to == StatusDeclined):
		return actor == RoleTutor
	case from == StatusAccepted && to == StatusClosed:
		return actor == RoleStudent
	}
	return false
}

// HelpRequest links one student to one tutor. Only the counterpart's
// name is filled in, depending on which side listed the request.
type HelpRequest struct {
	ID             string            `json:"id"`
	StudentID      string            `json:"student_id,omitempty"`
	StudentName    string            `json:"student_name,omitempty"`
	TutorID        string            `json:"tutor_id,omitempty"`
	TutorName      string            `json:"tutor_name,omitempty"`
	Subject        string            `json:"subject"`
	Description    string            `json:"description"`
	PreferredTimes []string          `json:"preferred_times"`
	Status         HelpRequestStatus `json:"status"`
	CreatedAt      string            `json:"created_at,omitempty"`
}

// NewHelpRequest is the body of a create call.
type NewHelpRequest struct {
	TutorID        string   `json:"tutor_id" validate:"required"`
	Subject        string   `json:"subject" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=4000"`
	PreferredTimes []string `json:"preferred_times" validate:"max=20,dive,max=100"`
}

// ContactCard is one party's contact details.
type ContactCard struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	SchedulingLink *string `json:"scheduling_link,omitempty"`
}

// ContactInfo is returned for accepted requests only.
type ContactInfo struct {
	Student ContactCard `json:"student"`
	Tutor   ContactCard `json:"tutor"`
}
