// internal/app/system/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/respond"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

type ctxKey string

const (
	managerKey  ctxKey = "sessionManager"
	clientIDCtx ctxKey = "clientID"
)

// Client returns the session manager attached by LoadClient.
func Client(r *http.Request) (*authsession.Manager, bool) {
	m, ok := r.Context().Value(managerKey).(*authsession.Manager)
	return m, ok && m != nil
}

// ClientIDFrom returns the client id attached by LoadClient.
func ClientIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(clientIDCtx).(string)
	return id
}

// WithClient attaches m to the request. Handlers under test use it in
// place of LoadClient.
func WithClient(r *http.Request, id string, m *authsession.Manager) *http.Request {
	ctx := context.WithValue(r.Context(), managerKey, m)
	ctx = context.WithValue(ctx, clientIDCtx, id)
	return r.WithContext(ctx)
}

// CurrentAccount waits (bounded) for the client to settle and returns
// the signed-in account.
func (sm *SessionManager) CurrentAccount(r *http.Request) (authsession.State, bool) {
	m, ok := Client(r)
	if !ok {
		return authsession.State{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), sm.settleLimit)
	defer cancel()
	if err := m.WaitSettled(ctx); err != nil {
		sm.log.Debug("client still loading at guard", zap.Error(err))
	}
	st := m.State()
	return st, st.SignedIn()
}

// LoadClient resolves the browser's client id, fetches (or creates) its
// session manager, and attaches both to the request along with the
// request metadata used by the audit log.
func (sm *SessionManager) LoadClient(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := sm.ClientID(w, r)
			if err != nil {
				sm.log.Error("client id unavailable", zap.Error(err))
				respond.Error(w, http.StatusInternalServerError, "session unavailable")
				return
			}
			m, err := reg.Get(r.Context(), id)
			if err != nil {
				sm.log.Error("client session unavailable", zap.Error(err))
				respond.Error(w, http.StatusServiceUnavailable, "session unavailable")
				return
			}
			r = WithClient(r, id, m)
			r = r.WithContext(auditlog.WithRequest(r.Context(), r))
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignedIn lets the request through only for a signed-in client.
// Otherwise:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 with a JSON error body.
//
// A client still loading is waited for, up to the settle limit.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := sm.CurrentAccount(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		denyAnonymous(w, r)
	})
}

// RequireRole admits a signed-in client holding role. While the profile
// has not been hydrated there is nothing to check against, so the
// request is admitted and the handler's own checks apply. A client
// lacking the role is sent to the home page of its active role (HTML)
// or gets 403 (API).
func (sm *SessionManager) RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := sm.CurrentAccount(r)
			if !ok {
				denyAnonymous(w, r)
				return
			}
			if !st.User.RolesLoaded() || st.User.HasRole(role) {
				next.ServeHTTP(w, r)
				return
			}

			dest := st.User.PrimaryRole().HomePath()
			switch {
			case r.Header.Get("HX-Request") == "true":
				w.Header().Set("HX-Redirect", dest)
				w.WriteHeader(http.StatusForbidden)
			case respond.WantsHTML(r):
				http.Redirect(w, r, dest, http.StatusSeeOther)
			default:
				respond.Error(w, http.StatusForbidden, "you need the "+role.String()+" role for this")
			}
		})
	}
}

func denyAnonymous(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(r.URL.RequestURI())
	switch {
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
	case respond.WantsHTML(r):
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
	default:
		respond.Error(w, http.StatusUnauthorized, authsession.ErrNotAuthenticated.Error())
	}
}
