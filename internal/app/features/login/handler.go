// internal/app/features/login/handler.go
package login

import (
	"net/http"

	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/features/shared/views"
	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/inputval"
	"github.com/dalemusser/bisontutor/internal/app/system/metrics"
	"github.com/dalemusser/bisontutor/internal/app/system/normalize"
	"github.com/dalemusser/bisontutor/internal/app/system/ratelimit"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/waffle/pantry/urlutil"
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

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Return   string `json:"return,omitempty"`
}

type loginResponse struct {
	views.Session
	Redirect string `json:"redirect"`
}

// HandleLogin signs the browser's client in with email and password.
//
// The response carries the account once its profile is loaded (waiting a
// short, bounded time for it) and where to go next: the requested return
// path when it is local, else the home page of the active role.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	var req loginRequest
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
			h.Metrics.Limited("login_" + limitType)
			respond.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	if _, err := m.Login(r.Context(), req.Email, req.Password); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(req.Email)
	}

	st := views.SignedIn(r.Context(), m)
	if !st.ProfileHydrated {
		h.Log.Debug("profile not loaded before login response")
	}

	v := views.FromState(st)
	home := v.Home
	if home == "" {
		home = "/"
	}
	redirect := urlutil.SafeReturn(req.Return, "", home)
	respond.JSON(w, http.StatusOK, loginResponse{Session: v, Redirect: redirect})
}
