// internal/app/features/password/handler.go
package password

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/features/shared/views"
	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/inputval"
	"github.com/dalemusser/bisontutor/internal/app/system/metrics"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/ratelimit"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	Limiter  *ratelimit.LoginLimiter // nil disables throttling
	AuditLog *auditlog.Logger
	Metrics  *metrics.Recorder
}

func NewHandler(limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, rec *metrics.Recorder, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		ErrLog:   errLog,
		Limiter:  limiter,
		AuditLog: audit,
		Metrics:  rec,
	}
}

type forgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleForgot mails a reset link to an institutional address.
func (h *Handler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req forgotRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = normalize.Email(req.Email)
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}

	if h.Limiter != nil {
		if ok, limitType, reason := h.Limiter.Check(r, req.Email); !ok {
			h.AuditLog.LoginRateLimited(r.Context(), req.Email, limitType)
			h.Metrics.Limited("reset_" + limitType)
			respond.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	if err := m.ResetPassword(r.Context(), req.Email); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{
		"message": "Check your email for a link to reset your password.",
	})
}

// recoveryRequest carries the tokens of a reset link. Fragment is the raw
// "#access_token=...&refresh_token=...&type=recovery" part of the link,
// for pages that pass it through unparsed.
type recoveryRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Type         string `json:"type"`
	Fragment     string `json:"fragment"`
}

// HandleRecovery adopts the session of a reset link. The client ends up
// in a recovery session that may only set a new password.
func (h *Handler) HandleRecovery(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req recoveryRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Fragment != "" {
		q, err := url.ParseQuery(strings.TrimPrefix(req.Fragment, "#"))
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "reset link is malformed")
			return
		}
		if desc := q.Get("error_description"); desc != "" {
			respond.Error(w, http.StatusBadRequest, desc)
			return
		}
		req.AccessToken = q.Get("access_token")
		req.RefreshToken = q.Get("refresh_token")
		req.Type = q.Get("type")
	}
	if req.Type != "" && req.Type != "recovery" {
		respond.Error(w, http.StatusBadRequest, "this is not a password reset link")
		return
	}

	if _, err := m.AdoptRecoverySession(r.Context(), req.AccessToken, req.RefreshToken); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	st, _ := m.WaitUntil(ctx, func(st authsession.State) bool {
		return st.Session != nil && st.Session.Recovery
	})
	respond.JSON(w, http.StatusOK, views.FromState(st))
}

type updateRequest struct {
	Password string `json:"password" label:"Password" validate:"required,max=72"`
	Confirm  string `json:"confirm,omitempty"`
}

// HandleUpdate sets the new password. The client is signed out afterwards
// and sent to the login page.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req updateRequest
	if err := respond.Decode(w, r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if res := inputval.Validate(req); res.HasErrors() {
		respond.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if req.Confirm != "" && req.Confirm != req.Password {
		respond.Error(w, http.StatusBadRequest, "Passwords do not match.")
		return
	}

	if err := m.UpdatePassword(r.Context(), req.Password); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{
		"message":  "Your password has been updated. Please log in.",
		"redirect": "/login",
	})
}
