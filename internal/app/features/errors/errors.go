// internal/app/features/errors/errors.go
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"go.uber.org/zap"
)

// statusFor maps error kinds to HTTP statuses. The first match wins.
var statusFor = []struct {
	err    error
	status int
}{
	{authsession.ErrInvalidCredentials, http.StatusUnauthorized},
	{authsession.ErrNotAuthenticated, http.StatusUnauthorized},
	{authsession.ErrNoActiveSession, http.StatusUnauthorized},
	{authsession.ErrEmailUnverified, http.StatusForbidden},
	{authsession.ErrRoleNotHeld, http.StatusForbidden},
	{authsession.ErrInvalidDomain, http.StatusBadRequest},
	{authsession.ErrInvalidRole, http.StatusBadRequest},
	{authsession.ErrNoRoleSelected, http.StatusBadRequest},
	{authsession.ErrWeakPassword, http.StatusBadRequest},
	{authsession.ErrRoleAlreadyHeld, http.StatusConflict},
	{authsession.ErrAlreadyRegistered, http.StatusConflict},
	{authsession.ErrProfileNotFound, http.StatusNotFound},
	{authsession.ErrClosed, http.StatusServiceUnavailable},
	{tutorapi.ErrNotSignedIn, http.StatusUnauthorized},
	{tutorapi.ErrUnavailable, http.StatusServiceUnavailable},
	{tutorapi.ErrInvalidTransition, http.StatusConflict},
	{tutorapi.ErrInvalidID, http.StatusBadRequest},
	{tutorapi.ErrTranscriptEmpty, http.StatusBadRequest},
	{tutorapi.ErrTranscriptType, http.StatusBadRequest},
	{tutorapi.ErrTranscriptTooLarge, http.StatusRequestEntityTooLarge},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// Status returns the HTTP status for err.
func Status(err error) int {
	for _, s := range statusFor {
		if stderrors.Is(err, s.err) {
			return s.status
		}
	}
	var ae *tutorapi.APIError
	if stderrors.As(err, &ae) {
		if ae.Status >= 500 {
			return http.StatusBadGateway
		}
		return ae.Status
	}
	var pe *provider.Error
	if stderrors.As(err, &pe) {
		if pe.Status >= 400 && pe.Status < 500 {
			return pe.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Message returns the text shown to the user for err. Known kinds use
// their own text rather than whatever wrapped them.
func Message(err error) string {
	var de *authsession.DomainError
	if stderrors.As(err, &de) {
		return de.Error()
	}
	var re *authsession.RoleError
	if stderrors.As(err, &re) {
		return re.Error()
	}
	for _, s := range statusFor {
		if stderrors.Is(err, s.err) {
			if s.err == context.DeadlineExceeded {
				return "The request took too long. Please try again."
			}
			return s.err.Error()
		}
	}
	var ae *tutorapi.APIError
	if stderrors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	var pe *provider.Error
	if stderrors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// ErrorLogger writes error responses and logs the ones that are the
// server's fault.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger creates an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// Write maps err to a status and writes {"error": message}.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status >= 500 {
		e.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	respond.Error(w, status, Message(err))
}

// Handler serves the fallback error endpoints.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// NotFound handles unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed handles a known path with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
}
