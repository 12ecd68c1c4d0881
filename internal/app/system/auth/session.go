// internal/app/system/auth/session.go
package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const clientIDKey = "client_id"

// SessionManager owns the browser cookie. The cookie carries only a
// random client id; all auth state lives in the client's
// authsession.Manager, found through the Registry.
type SessionManager struct {
	store       *sessions.CookieStore
	sessionName string
	settleLimit time.Duration
	log         *zap.Logger
}

// NewSessionManager creates the cookie store. In production (secure=true)
// cookies are Secure + SameSite=None; over http://localhost use
// secure=false so browsers accept them.
func NewSessionManager(sessionKey, sessionName, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if sessionName == "" {
		sessionName = "bisontutor-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.String("name", sessionName))

	return &SessionManager{
		store:       store,
		sessionName: sessionName,
		settleLimit: 5 * time.Second,
		log:         logger,
	}, nil
}

// SetSettleLimit bounds how long guards wait for a loading client.
func (sm *SessionManager) SetSettleLimit(d time.Duration) {
	if d > 0 {
		sm.settleLimit = d
	}
}

// ClientID returns the client id of the browser, minting and saving a
// new one when the cookie is missing or unreadable.
func (sm *SessionManager) ClientID(w http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := sm.store.Get(r, sm.sessionName)
	if err != nil {
		// Tampered or rotated-key cookies decode to a fresh session.
		sm.log.Debug("discarding unreadable session cookie", zap.Error(err))
	}
	if id, ok := sess.Values[clientIDKey].(string); ok && id != "" {
		return id, nil
	}

	id, err := newClientID()
	if err != nil {
		return "", err
	}
	sess.Values[clientIDKey] = id
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("save session cookie: %w", err)
	}
	return id, nil
}

// Forget expires the client cookie.
func (sm *SessionManager) Forget(w http.ResponseWriter, r *http.Request) {
	sess, _ := sm.store.Get(r, sm.sessionName)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("expire session cookie failed", zap.Error(err))
	}
}

func newClientID() (string, error) {
	b := securecookie.GenerateRandomKey(24)
	if b == nil {
		return "", errors.New("generate client id: random source failed")
	}
	return hex.EncodeToString(b), nil
}
