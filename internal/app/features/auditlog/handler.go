// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"go.uber.org/zap"
)

// Handler serves the signed-in account's own audit trail.
type Handler struct {
	Store      *audit.Store // nil when MongoDB is not configured
	SessionMgr *auth.SessionManager
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
}

// NewHandler constructs an audit log Handler. store may be nil.
func NewHandler(store *audit.Store, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:      store,
		SessionMgr: sessionMgr,
		Log:        logger,
		ErrLog:     errLog,
	}
}
