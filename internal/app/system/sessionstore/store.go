// Package sessionstore holds the bearer token of the current session.
//
// The Session/Role manager is the only writer. HTTP clients read the token
// through the oauth2.TokenSource interface, so an outbound request made
// while signed out fails instead of going out unauthenticated.
package sessionstore

import (
	"errors"
	"sync"

	"github.com/dalemusser/bisontutor/internal/domain/models"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Token when no session is set.
var ErrNoToken = errors.New("sessionstore: no access token")

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	session *models.Session
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Set installs the session whose token will be attached to requests.
// A nil session clears the store.
func (s *Store) Set(sess *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess.Clone()
}

// Clear removes the token.
func (s *Store) Clear() {
	s.Set(nil)
}

// AccessToken returns the current token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.AccessToken
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil || s.session.AccessToken == "" {
		return nil, ErrNoToken
	}
	tokenType := s.session.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.session.AccessToken,
		RefreshToken: s.session.RefreshToken,
		TokenType:    tokenType,
		Expiry:       s.session.ExpiresAt,
	}, nil
}

var _ oauth2.TokenSource = (*Store)(nil)
