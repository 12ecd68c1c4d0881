// internal/app/features/register/handler.go
package register

import (
	"net/http"
	"strings"

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
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Log: logger, ErrLog: errLog}
}

type registerRequest struct {
	Name     string   `json:"name" label:"Full name" validate:"required,max=200"`
	Email    string   `json:"email" label:"Email" validate:"required,max=254"`
	Password string   `json:"password" label:"Password" validate:"required,max=72"`
	Roles    []string `json:"roles"`
}

type registerResponse struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	NeedsVerification bool   `json:"needs_verification"`
	Redirect          string `json:"redirect"`
}

// HandleRegister creates an account. Domain, role and password checks
// happen in the session manager before the provider is called. When the
// provider asks for email confirmation the caller is sent to
// /verify-email.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req registerRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = normalize.Name(req.Name)
	req.Email = normalize.Email(req.Email)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	roles := make([]models.Role, 0, len(req.Roles))
	for _, s := range req.Roles {
		roles = append(roles, models.Role(normalize.Role(s)))
	}

	res, err := m.Register(r.Context(), authsession.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Roles:    roles,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	out := registerResponse{
		Email:             req.Email,
		NeedsVerification: res.Session == nil,
		Redirect:          "/verify-email",
	}
	if res.User != nil {
		out.UserID = res.User.ID
	}
	if res.Session != nil {
		st := views.SignedIn(r.Context(), m)
		out.Redirect = views.FromState(st).Home
	}
	respond.JSON(w, http.StatusCreated, out)
}

type verifyRequest struct {
	TokenHash string `json:"token_hash" validate:"required"`
	Type      string `json:"type,omitempty"`
}

// HandleVerify confirms an email address from the token in the emailed
// link and signs the client in.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req verifyRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.TokenHash = strings.TrimSpace(req.TokenHash)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if req.Type != "" && req.Type != "email" && req.Type != "signup" {
		respond.Error(w, http.StatusBadRequest, "unsupported verification type")
		return
	}

	if _, err := m.VerifyEmail(r.Context(), req.TokenHash); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, views.FromState(views.SignedIn(r.Context(), m)))
}
