package roles

import (
	"context"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/client/tutorapi"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

type rolesView struct {
	Roles      []models.Role           `json:"roles"`
	ActiveRole models.Role             `json:"active_role"`
	Service    *tutorapi.RolesResponse `json:"service"`
	InSync     bool                    `json:"in_sync"`
}

// ServeRoles handles GET /roles: the roles this browser holds next to
// the roles the help-request service sees for the same token. A service
// failure leaves "service" null.
func (h *Handler) ServeRoles(w http.ResponseWriter, r *http.Request) {
	m, ok := auth.Client(r)
	if !ok {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Bootstrap())
	_ = m.WaitSettled(ctx)
	cancel()

	st := m.State()
	if !st.SignedIn() {
		h.ErrLog.Write(w, r, authsession.ErrNotAuthenticated)
		return
	}

	v := rolesView{
		Roles:      st.User.EffectiveRoles(),
		ActiveRole: st.User.PrimaryRole(),
	}
	if h.API != nil {
		svc, err := h.API.As(m.Tokens()).MyRoles(r.Context())
		if err != nil {
			h.Log.Debug("service roles unavailable", zap.Error(err))
		} else {
			v.Service = svc
			v.InSync = sameRoles(v.Roles, svc.Roles) && v.ActiveRole == svc.ActiveRole
		}
	}
	respond.JSON(w, http.StatusOK, v)
}

func sameRoles(a, b []models.Role) bool {
	if len(a) != len(b) {
		return false
	}
	for _, r := range a {
		if !models.ContainsRole(b, r) {
			return false
		}
	}
	return true
}
