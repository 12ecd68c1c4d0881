// internal/app/features/heartbeat/routes.go
package heartbeat

import "github.com/go-chi/chi/v5"

// Routes returns the router for heartbeat endpoints. Signed-out clients
// get a plain answer rather than a redirect.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeHeartbeat)
	return r
}
