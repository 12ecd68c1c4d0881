// internal/app/features/helprequests/handler.go
package helprequests

import (
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler serves help requests between students and tutors. The service
// enforces who may see and change what; the checks here only keep
// requests that cannot succeed from going out.
type Handler struct {
	API        *tutorapi.Client
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
}

func NewHandler(api *tutorapi.Client, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{API: api, SessionMgr: sessionMgr, Log: logger, ErrLog: errLog}
}

// caller returns the API client bound to the browser's session, plus the
// account's state.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*tutorapi.Caller, authsession.State, bool) {
	st, ok := h.SessionMgr.CurrentAccount(r)
	if !ok {
		h.ErrLog.Write(w, r, authsession.ErrNotAuthenticated)
		return nil, st, false
	}
	m, _ := auth.Client(r)
	return h.API.As(m.Tokens()), st, true
}

func writeNotFound(w http.ResponseWriter) {
	respond.Error(w, http.StatusNotFound, "Help request not found")
}
