// internal/app/features/session/handler.go
package session

import (
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/features/shared/views"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/waffle/pantry/query"
)

// Handler serves the session state of the browser's client.
type Handler struct{}

// NewHandler creates a new session handler.
func NewHandler() *Handler {
	return &Handler{}
}

// ServeSession returns the {user, session, loading} view of the client.
//
// By default the current snapshot is returned, loading included. With
// ?wait=1 the call first waits (bounded) for the initial check and any
// pending profile load to finish.
func (h *Handler) ServeSession(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.JSON(w, http.StatusOK, views.Session{})
		return
	}

	st := m.State()
	switch query.Get(r, "wait") {
	case "1", "true":
		st = views.Loaded(r.Context(), m)
	}
	respond.JSON(w, http.StatusOK, views.FromState(st))
}
