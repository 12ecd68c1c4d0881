// internal/app/features/roles/handler.go
package roles

import (
	"context"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/features/shared/views"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/inputval"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	API    *tutorapi.Client
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(api *tutorapi.Client, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{API: api, Log: logger, ErrLog: errLog}
}

type roleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type roleResponse struct {
	views.Session
	Redirect string `json:"redirect"`
}

// HandleSwitch makes another held role the active one.
func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*authsession.Manager).SwitchRole)
}

// HandleAdd grants a new role and makes it active. Adding the tutor role
// also creates the empty tutor profile.
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, (*authsession.Manager).AddRole)
}

func (h *Handler) apply(w http.ResponseWriter, r *http.Request, op func(*authsession.Manager, context.Context, models.Role) error) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req roleRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Role = normalize.Role(req.Role)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	role := models.Role(req.Role)
	if err := op(m, r.Context(), role); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, roleResponse{
		Session:  views.FromState(m.State()),
		Redirect: role.HomePath(),
	})
}
