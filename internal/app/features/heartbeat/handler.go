// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"go.uber.org/zap"
)

// Handler answers the browser's periodic keep-alive. Reaching the handler
// at all marks the client as used in the registry, so open tabs are not
// evicted as idle.
type Handler struct {
	Log *zap.Logger
	now func() time.Time
}

// NewHandler creates a new heartbeat handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger, now: time.Now}
}

// heartbeatRequest is the JSON body for the heartbeat endpoint.
type heartbeatRequest struct {
	Page string `json:"page"`
}

type heartbeatResponse struct {
	SignedIn  bool       `json:"signed_in"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// ServeHeartbeat handles POST /heartbeat. It reports whether the client
// is still signed in and when its session expires; the page prompts
// for a fresh sign-in once Expired is set.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.JSON(w, http.StatusOK, heartbeatResponse{})
		return
	}

	var req heartbeatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // page is optional
	}

	st := m.State()
	resp := heartbeatResponse{SignedIn: st.SignedIn()}
	if st.Session != nil {
		if !st.Session.ExpiresAt.IsZero() {
			exp := st.Session.ExpiresAt
			resp.ExpiresAt = &exp
		}
		resp.Expired = st.Session.Expired(h.now())
	}

	h.Log.Debug("heartbeat",
		zap.String("client_id", auth.ClientIDFrom(r)),
		zap.String("page", req.Page),
		zap.Bool("signed_in", resp.SignedIn))

	respond.JSON(w, http.StatusOK, resp)
}
