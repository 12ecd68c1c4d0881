// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"go.uber.org/zap"
)

// Handler owns the profile endpoints of the signed-in account. All reads
// and writes go through the client's session manager so its state
// follows every save.
type Handler struct {
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs a profile Handler.
func NewHandler(errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:    logger,
		ErrLog: errLog,
	}
}
