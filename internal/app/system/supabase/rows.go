package supabase

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dalemusser/bisontutor/internal/domain/models"
)

func eq(id string) url.Values {
	return url.Values{"id": {"eq." + id}, "select": {"*"}}
}

func (c *Client) rows(ctx context.Context, req request, out any) error {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req.bearer = tok
	return c.do(ctx, req, out)
}

// GetProfile returns the profiles row for id, or nil when absent.
func (c *Client) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var out []models.Profile
	err := c.rows(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/profiles",
		query:  eq(id),
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// InsertProfile inserts a profiles row.
func (c *Client) InsertProfile(ctx context.Context, p models.Profile) error {
	body := map[string]any{"id": p.ID}
	if p.Role != "" {
		body["role"] = p.Role
	}
	if p.Roles != nil {
		body["roles"] = p.Roles
	}
	if p.ActiveRole != "" {
		body["active_role"] = p.ActiveRole
	}
	if p.Name != nil {
		body["name"] = *p.Name
	}
	if p.Phone != nil {
		body["phone"] = *p.Phone
	}
	return c.rows(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/profiles",
		body:   []map[string]any{body},
		header: http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}

// UpdateProfile patches the columns named by upd.
func (c *Client) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	fields := upd.Fields()
	if len(fields) == 0 {
		return nil
	}
	return c.rows(ctx, request{
		method: http.MethodPatch,
		path:   "/rest/v1/profiles",
		query:  url.Values{"id": {"eq." + id}},
		body:   fields,
		header: http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}

// GetTutorProfile returns the tutor_profiles row for id, or nil when absent.
func (c *Client) GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error) {
	var out []models.TutorProfile
	err := c.rows(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/tutor_profiles",
		query:  eq(id),
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// InsertTutorProfile inserts a tutor_profiles row.
func (c *Client) InsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	return c.rows(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/tutor_profiles",
		body:   []models.TutorProfile{tutorRow(tp)},
		header: http.Header{"Prefer": {"return=minimal"}},
	}, nil)
}

// UpsertTutorProfile inserts or merges a tutor_profiles row.
func (c *Client) UpsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	return c.rows(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/tutor_profiles",
		query:  url.Values{"on_conflict": {"id"}},
		body:   []models.TutorProfile{tutorRow(tp)},
		header: http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}},
	}, nil)
}

func tutorRow(tp models.TutorProfile) models.TutorProfile {
	if tp.Subjects == nil {
		tp.Subjects = []string{}
	}
	if tp.Availability == nil {
		tp.Availability = []string{}
	}
	return tp
}
