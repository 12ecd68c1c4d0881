// internal/app/features/roles/routes.go
package roles

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeRoles)
	r.Post("/switch", h.HandleSwitch)
	r.Post("/add", h.HandleAdd)
	return r
}
