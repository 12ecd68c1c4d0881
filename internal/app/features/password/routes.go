// internal/app/features/password/routes.go
package password

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/forgot", h.HandleForgot)
	r.Post("/recovery", h.HandleRecovery)
	r.Post("/update", h.HandleUpdate)
	return r
}
