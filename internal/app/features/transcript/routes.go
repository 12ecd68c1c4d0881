// internal/app/features/transcript/routes.go
package transcript

import (
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Use(sm.RequireRole(models.RoleTutor))
	r.Post("/upload", h.HandleUpload)
	r.Post("/verify", h.HandleVerify)
	r.Get("/status", h.ServeStatus)
	return r
}
