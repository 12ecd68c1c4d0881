// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	Clients    *auth.Registry
}

func NewHandler(sessionMgr *auth.SessionManager, clients *auth.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		Clients:    clients,
	}
}

// HandleLogout handles POST /logout.
//
// Local state is cleared first and the remote sign-out is best effort, so
// this always succeeds. The browser's client is then dropped and its
// cookie expired; the next request starts a fresh client.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if m, ok := auth.Client(r); ok {
		m.Logout(r.Context())
	}
	if id := auth.ClientIDFrom(r); id != "" && h.Clients != nil {
		h.Clients.Remove(id)
	}
	if h.SessionMgr != nil {
		h.SessionMgr.Forget(w, r)
	}

	// HTMX handling: use HX-Redirect to force a client-side navigation to "/".
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	if respond.WantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"redirect": "/"})
}
