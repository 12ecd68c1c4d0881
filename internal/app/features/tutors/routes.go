// internal/app/features/tutors/routes.go
package tutors

import (
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/search", h.ServeSearch)
	r.Get("/{id}", h.ServeTutor)
	return r
}
