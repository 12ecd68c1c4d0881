// internal/app/client/tutorapi/helprequests.go
package tutorapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned before any call when the requested
// status change is not allowed for the acting role.
var ErrInvalidTransition = errors.New("invalid status change")

// Created is the answer to CreateHelpRequest.
type Created struct {
	ID     string                   `json:"id"`
	Status models.HelpRequestStatus `json:"status"`
}

// CreateHelpRequest sends a request from the caller (as student) to a
// tutor. Each call carries a fresh Idempotency-Key.
func (cl *Caller) CreateHelpRequest(ctx context.Context, in models.NewHelpRequest) (*Created, error) {
	if in.PreferredTimes == nil {
		in.PreferredTimes = []string{}
	}
	var out Created
	if err := cl.do(ctx, request{
		endpoint: "help_request_create",
		method:   http.MethodPost,
		path:     "/help-requests",
		body:     in,
		header:   http.Header{"Idempotency-Key": {uuid.NewString()}},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFilter selects which side of the caller's requests to list. An
// empty AsRole lets the service use the active role.
type ListFilter struct {
	AsRole models.Role
	Status models.HelpRequestStatus
}

// ListHelpRequests lists the caller's requests, newest first.
func (cl *Caller) ListHelpRequests(ctx context.Context, f ListFilter) ([]models.HelpRequest, error) {
	q := url.Values{}
	if f.AsRole != "" {
		if !f.AsRole.IsValid() {
			return nil, fmt.Errorf("as_role must be student or tutor, got %q", f.AsRole)
		}
		q.Set("as_role", f.AsRole.String())
	}
	if f.Status != "" {
		if !f.Status.IsValid() {
			return nil, fmt.Errorf("unknown status %q", f.Status)
		}
		q.Set("status", string(f.Status))
	}

	out := []models.HelpRequest{}
	if err := cl.do(ctx, request{
		endpoint: "help_request_list",
		method:   http.MethodGet,
		path:     "/help-requests",
		query:    q,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Updated is the answer to UpdateHelpRequestStatus.
type Updated struct {
	OK     bool                     `json:"ok"`
	Status models.HelpRequestStatus `json:"status"`
}

// UpdateHelpRequestStatus moves a request from one status to another on
// behalf of actor. Tutors accept or decline pending requests; students
// close accepted ones. Anything else fails before the call.
func (cl *Caller) UpdateHelpRequestStatus(ctx context.Context, id string, from, to models.HelpRequestStatus, actor models.Role) (*Updated, error) {
	if err := checkID("help request", id); err != nil {
		return nil, err
	}
	if from.IsTerminal() {
		return nil, fmt.Errorf("%w: request is already %s", ErrInvalidTransition, from)
	}
	if !models.CanTransition(from, to, actor) {
		return nil, fmt.Errorf("%w: %s cannot move a request from %s to %s", ErrInvalidTransition, actor, from, to)
	}
	var out Updated
	if err := cl.do(ctx, request{
		endpoint: "help_request_update",
		method:   http.MethodPatch,
		path:     "/help-requests/" + id,
		body:     map[string]string{"status": string(to)},
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContactInfo returns both parties' contact details for an accepted
// request.
func (cl *Caller) ContactInfo(ctx context.Context, id string) (*models.ContactInfo, error) {
	if err := checkID("help request", id); err != nil {
		return nil, err
	}
	var out models.ContactInfo
	if err := cl.do(ctx, request{
		endpoint: "help_request_contact",
		method:   http.MethodGet,
		path:     "/help-requests/" + id + "/contact",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
