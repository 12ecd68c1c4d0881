// internal/app/features/helprequests/routes.go
package helprequests

import (
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(h.SessionMgr.RequireSignedIn)
	r.With(h.SessionMgr.RequireRole(models.RoleStudent)).Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Patch("/{id}", h.HandleUpdateStatus)
	r.Get("/{id}/contact", h.ServeContact)
	return r
}
