package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
)

// wireSession is GoTrue's token response.
type wireSession struct {
	AccessToken  string          `json:"access_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int64           `json:"expires_in"`
	ExpiresAt    int64           `json:"expires_at"`
	RefreshToken string          `json:"refresh_token"`
	User         models.Identity `json:"user"`
}

func (w wireSession) session(now time.Time) *models.Session {
	s := &models.Session{
		AccessToken:  w.AccessToken,
		RefreshToken: w.RefreshToken,
		TokenType:    w.TokenType,
		User:         w.User,
	}
	switch {
	case w.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(w.ExpiresAt, 0).UTC()
	case w.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(w.ExpiresIn) * time.Second).UTC()
	}
	return s
}

// GetSession returns the current session, refreshing it when expired. A
// failed refresh signs the client out and returns no session.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	cur := c.current()
	if cur == nil || !cur.Expired(c.now()) {
		return cur, nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	// another caller may have refreshed while we waited
	if again := c.current(); again == nil || !again.Expired(c.now()) {
		return again, nil
	}

	next, err := c.refresh(ctx, cur.RefreshToken, cur.Recovery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Info("session refresh failed; signing out locally")
		c.setSession(nil)
		c.publish(provider.EventSignedOut, nil)
		return nil, nil
	}
	c.setSession(next)
	c.publish(provider.EventTokenRefreshed, next)
	return next.Clone(), nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string, recovery bool) (*models.Session, error) {
	var ws wireSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &ws)
	if err != nil {
		return nil, err
	}
	s := ws.session(c.now())
	s.Recovery = recovery
	return s, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var ws wireSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &ws)
	if err != nil {
		return nil, err
	}
	s := ws.session(c.now())
	c.setSession(s)
	c.publish(provider.EventSignedIn, s)
	return s, nil
}

// SignUp registers an account. When the project requires email
// confirmation the answer is the bare user and no session.
func (c *Client) SignUp(ctx context.Context, p provider.SignUpParams) (*provider.SignUpResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	q := url.Values{}
	if p.RedirectTo != "" {
		q.Set("redirect_to", p.RedirectTo)
	}
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		query:  q,
		body: map[string]any{
			"email":    p.Email,
			"password": p.Password,
			"data":     p.Data,
		},
	}, &raw)
	if err != nil {
		return nil, err
	}

	var ws wireSession
	if err := json.Unmarshal(raw, &ws); err == nil && ws.AccessToken != "" {
		s := ws.session(c.now())
		c.setSession(s)
		c.publish(provider.EventSignedIn, s)
		u := s.User
		return &provider.SignUpResult{User: &u, Session: s.Clone()}, nil
	}

	var u models.Identity
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &provider.SignUpResult{User: &u}, nil
}

// SignOut revokes the session remotely and clears it locally. The local
// clear and the SIGNED_OUT notification happen even when the remote call
// fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	cur := c.current()
	var err error
	if cur != nil {
		err = c.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			bearer: cur.AccessToken,
		}, nil)
		// an already-invalid token is as good as signed out
		if isUnauthorized(err) {
			err = nil
		}
	}
	c.setSession(nil)
	c.publish(provider.EventSignedOut, nil)
	return err
}

// ResetPasswordForEmail asks the provider to mail a recovery link.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	q := url.Values{}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/recover",
		query:  q,
		body:   map[string]string{"email": email},
	}, nil)
}

// UpdatePassword changes the password of the signed-in account.
func (c *Client) UpdatePassword(ctx context.Context, password string) (*models.Identity, error) {
	cur, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, provider.ErrNoSession
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	var u models.Identity
	err = c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/v1/user",
		body:   map[string]string{"password": password},
		bearer: cur.AccessToken,
	}, &u)
	if err != nil {
		return nil, err
	}
	cur.User = u
	c.setSession(cur)
	c.publish(provider.EventUserUpdated, cur)
	return &u, nil
}

// VerifyOTP redeems the token hash of an emailed confirmation link.
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*models.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var ws wireSession
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": otpType, "token_hash": tokenHash},
	}, &ws)
	if err != nil {
		return nil, err
	}
	s := ws.session(c.now())
	kind := provider.EventSignedIn
	if otpType == "recovery" {
		s.Recovery = true
		kind = provider.EventPasswordRecovery
	}
	c.setSession(s)
	c.publish(kind, s)
	return s, nil
}

// GetUser asks the provider who the current bearer belongs to.
func (c *Client) GetUser(ctx context.Context) (*models.Identity, error) {
	cur, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, provider.ErrNoSession
	}
	var u models.Identity
	err = c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: cur.AccessToken,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetSession adopts tokens from a recovery link. The access token is
// checked against the provider; when it has expired the refresh token is
// exchanged instead. Adoption publishes PASSWORD_RECOVERY.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	var u models.Identity
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
	}, &u)

	var s *models.Session
	switch {
	case err == nil:
		s = &models.Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "bearer",
			User:         u,
			Recovery:     true,
		}
	case isUnauthorized(err) && refreshToken != "":
		s, err = c.refresh(ctx, refreshToken, true)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	c.setSession(s)
	c.publish(provider.EventPasswordRecovery, s)
	return s, nil
}
