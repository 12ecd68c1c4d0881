// internal/app/features/profile/profile.go
package profile

import (
	"net/http"
	"strings"

	"github.com/dalemusser/bisontutor/internal/app/features/shared/views"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/htmlsanitize"
	"github.com/dalemusser/bisontutor/internal/app/system/inputval"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
)

type profileResponse struct {
	views.Session
	TutorProfile *models.TutorProfile `json:"tutor_profile,omitempty"`
	Message      string               `json:"message,omitempty"`
}

// ServeProfile returns the account and, for tutors, the tutor profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, authsession.ErrNotAuthenticated.Error())
		return
	}
	h.writeProfile(w, r, m, "")
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, m *authsession.Manager, msg string) {
	st := views.Loaded(r.Context(), m)
	if !st.SignedIn() {
		h.ErrLog.Write(w, r, authsession.ErrNotAuthenticated)
		return
	}
	out := profileResponse{Session: views.FromState(st), Message: msg}
	if st.User.HasRole(models.RoleTutor) {
		tp, err := m.TutorProfile(r.Context())
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		out.TutorProfile = &tp
	}
	respond.JSON(w, http.StatusOK, out)
}

type profileRequest struct {
	Name  string `json:"name" label:"Name" validate:"required,max=200"`
	Phone string `json:"phone" label:"Phone" validate:"max=40"`
}

// HandleUpdate saves name and phone. An empty phone clears it.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, authsession.ErrNotAuthenticated.Error())
		return
	}

	var req profileRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = normalize.Name(req.Name)
	req.Phone = normalize.Phone(req.Phone)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	if err := m.UpdateProfile(r.Context(), &req.Name, &req.Phone); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeProfile(w, r, m, "Profile saved successfully!")
}

type tutorProfileRequest struct {
	Name           string   `json:"name" label:"Name" validate:"required,max=200"`
	Phone          string   `json:"phone" label:"Phone" validate:"max=40"`
	Bio            string   `json:"bio" label:"Bio" validate:"max=4000"`
	Subjects       []string `json:"subjects" label:"Subjects" validate:"max=50,dive,max=100"`
	Availability   []string `json:"availability" label:"Availability" validate:"max=50,dive,max=100"`
	SchedulingLink string   `json:"scheduling_link" label:"Scheduling link" validate:"omitempty,max=500,httpurl"`
}

// HandleUpdateTutor saves the account fields and upserts the tutor
// profile. Subjects and availability may be sent as lists, as
// comma-separated strings, or both.
func (h *Handler) HandleUpdateTutor(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, authsession.ErrNotAuthenticated.Error())
		return
	}

	var req tutorProfileRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = normalize.Name(req.Name)
	req.Phone = normalize.Phone(req.Phone)
	req.Bio = htmlsanitize.Text(req.Bio)
	req.Subjects = normalize.List(splitCommas(req.Subjects))
	req.Availability = normalize.List(splitCommas(req.Availability))
	req.SchedulingLink = strings.TrimSpace(req.SchedulingLink)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	if st := m.State(); st.User != nil && st.User.RolesLoaded() && !st.User.HasRole(models.RoleTutor) {
		h.ErrLog.Write(w, r, &authsession.RoleError{Role: models.RoleTutor, Err: authsession.ErrRoleNotHeld})
		return
	}
	if err := m.UpdateProfile(r.Context(), &req.Name, &req.Phone); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	tp := models.TutorProfile{
		Bio:          req.Bio,
		Subjects:     req.Subjects,
		Availability: req.Availability,
	}
	if req.SchedulingLink != "" {
		tp.SchedulingLink = &req.SchedulingLink
	}
	if err := m.SaveTutorProfile(r.Context(), tp); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.writeProfile(w, r, m, "Profile saved successfully!")
}

func splitCommas(items []string) []string {
	var out []string
	for _, it := range items {
		out = append(out, strings.Split(it, ",")...)
	}
	return out
}
