// internal/app/client/tutorapi/tutors.go
package tutorapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// SearchTutors lists tutors matching the optional filters.
func (cl *Caller) SearchTutors(ctx context.Context, s models.TutorSearch) ([]models.TutorSummary, error) {
	q := url.Values{}
	if s.Subject != "" {
		q.Set("subject", s.Subject)
	}
	if s.Availability != "" {
		q.Set("availability", s.Availability)
	}
	if s.VerifiedOnly {
		q.Set("verified_only", "true")
	}

	out := []models.TutorSummary{}
	if err := cl.do(ctx, request{
		endpoint: "tutors_search",
		method:   http.MethodGet,
		path:     "/tutors/search",
		query:    q,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTutor returns one tutor's public profile.
func (cl *Caller) GetTutor(ctx context.Context, id string) (*models.TutorDetail, error) {
	if err := checkID("tutor", id); err != nil {
		return nil, err
	}
	var out models.TutorDetail
	if err := cl.do(ctx, request{
		endpoint: "tutor_get",
		method:   http.MethodGet,
		path:     "/tutors/" + id,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RolesResponse is the service's view of the caller's roles.
type RolesResponse struct {
	Roles      []models.Role `json:"roles"`
	ActiveRole models.Role   `json:"active_role"`
}

// MyRoles returns the roles the service sees for the caller.
func (cl *Caller) MyRoles(ctx context.Context) (*RolesResponse, error) {
	var out RolesResponse
	if err := cl.do(ctx, request{
		endpoint: "me_roles",
		method:   http.MethodGet,
		path:     "/me/roles",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
