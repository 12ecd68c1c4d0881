// internal/app/features/shared/views/views.go
package views

import (
	"context"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// SessionInfo is the part of a session safe to hand to the browser.
// Tokens never leave the server.
type SessionInfo struct {
	ExpiresAt *time.Time `json:"expires_at"`
	Recovery  bool       `json:"recovery,omitempty"`
}

// Session is the {user, session, loading} triple exposed to pages.
type Session struct {
	User            *models.Account `json:"user"`
	Session         *SessionInfo    `json:"session"`
	Loading         bool            `json:"loading"`
	ProfileHydrated bool            `json:"profile_hydrated"`
	Home            string          `json:"home,omitempty"`
}

// FromState builds the browser view of st.
func FromState(st authsession.State) Session {
	v := Session{
		User:            st.User,
		Loading:         st.Loading(),
		ProfileHydrated: st.ProfileHydrated,
	}
	if st.Session != nil {
		info := &SessionInfo{Recovery: st.Session.Recovery}
		if !st.Session.ExpiresAt.IsZero() {
			exp := st.Session.ExpiresAt
			info.ExpiresAt = &exp
		}
		v.Session = info
	}
	if st.User != nil && st.User.RolesLoaded() {
		v.Home = st.User.PrimaryRole().HomePath()
	}
	return v
}

// Loaded waits, at most timeouts.Short, until m is signed out or its
// profile is hydrated, and returns the state it ends on.
func Loaded(ctx context.Context, m *authsession.Manager) authsession.State {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	st, _ := m.WaitUntil(ctx, func(st authsession.State) bool {
		return !st.Loading() && (!st.SignedIn() || st.ProfileHydrated)
	})
	return st
}

// SignedIn waits, at most timeouts.Short, until m holds a signed-in
// account with its profile loaded. Used right after a sign-in call,
// before the change notification has been applied.
func SignedIn(ctx context.Context, m *authsession.Manager) authsession.State {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	st, _ := m.WaitUntil(ctx, func(st authsession.State) bool {
		return st.SignedIn() && st.ProfileHydrated
	})
	return st
}
