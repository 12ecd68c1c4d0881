// internal/app/features/helprequests/requests.go
package helprequests

import (
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/htmlsanitize"
	"github.com/dalemusser/bisontutor/internal/app/system/inputval"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
)

// HandleCreate sends a help request from the signed-in student.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	cl, _, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req models.NewHelpRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Subject = normalize.Name(req.Subject)
	req.Description = htmlsanitize.Text(req.Description)
	req.PreferredTimes = normalize.List(req.PreferredTimes)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	created, err := cl.CreateHelpRequest(r.Context(), req)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

// ServeList lists the caller's requests. as_role picks the side (default:
// the active role) and status filters by status.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cl, st, ok := h.caller(w, r)
	if !ok {
		return
	}

	f := tutorapi.ListFilter{Status: models.HelpRequestStatus(normalize.Status(query.Get(r, "status")))}
	if f.Status != "" && !f.Status.IsValid() {
		respond.Error(w, http.StatusBadRequest, "status must be pending, accepted, declined or closed.")
		return
	}
	if v := normalize.Role(query.Get(r, "as_role")); v != "" {
		role, valid := models.ParseRole(v)
		if !valid {
			respond.Error(w, http.StatusBadRequest, authsession.ErrInvalidRole.Error())
			return
		}
		f.AsRole = role
	} else {
		f.AsRole = st.User.PrimaryRole()
	}
	if f.AsRole != "" && st.User.RolesLoaded() && !st.User.HasRole(f.AsRole) {
		h.ErrLog.Write(w, r, &authsession.RoleError{Role: f.AsRole, Err: authsession.ErrRoleNotHeld})
		return
	}

	list, err := cl.ListHelpRequests(r.Context(), f)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,helpstatus"`
	AsRole string `json:"as_role,omitempty" validate:"omitempty,role"`
}

// actorFor is the side that may move a request to status.
func actorFor(to models.HelpRequestStatus) models.Role {
	if to == models.StatusClosed {
		return models.RoleStudent
	}
	return models.RoleTutor
}

// HandleUpdateStatus moves a request along its lifecycle. The current
// status is read from the caller's own list first, so a transition the
// caller cannot make fails here with a clear message.
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	cl, st, ok := h.caller(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Status = normalize.Status(req.Status)
	req.AsRole = normalize.Role(req.AsRole)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	to := models.HelpRequestStatus(req.Status)
	actor := actorFor(to)
	if req.AsRole != "" {
		actor = models.Role(req.AsRole)
	}
	if st.User.RolesLoaded() && !st.User.HasRole(actor) {
		h.ErrLog.Write(w, r, &authsession.RoleError{Role: actor, Err: authsession.ErrRoleNotHeld})
		return
	}

	list, err := cl.ListHelpRequests(r.Context(), tutorapi.ListFilter{AsRole: actor})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var current *models.HelpRequest
	for i := range list {
		if list[i].ID == id {
			current = &list[i]
			break
		}
	}
	if current == nil {
		writeNotFound(w)
		return
	}

	updated, err := cl.UpdateHelpRequestStatus(r.Context(), id, current.Status, to, actor)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

// ServeContact returns both parties' contact details. The service only
// shares them while the request is accepted.
func (h *Handler) ServeContact(w http.ResponseWriter, r *http.Request) {
	cl, _, ok := h.caller(w, r)
	if !ok {
		return
	}
	info, err := cl.ContactInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, info)
}
