package memprovider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/mailer"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Client is one browser's view of the Backend: it holds that browser's
// current session and publishes its auth-state changes.
type Client struct {
	b  *Backend
	bc *provider.Broadcaster

	// opMu serializes session changes with their notifications so
	// subscribers see events in the order the session changed.
	opMu sync.Mutex

	mu      sync.Mutex
	session *models.Session
}

var _ provider.Auth = (*Client)(nil)

// NewClient returns a signed-out client.
func (b *Backend) NewClient() *Client {
	return &Client{b: b, bc: provider.NewBroadcaster()}
}

// Subscribe returns a subscription to this client's auth-state changes.
func (c *Client) Subscribe() *provider.Subscription {
	return c.bc.Subscribe()
}

func (c *Client) current() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s.Clone()
	c.mu.Unlock()
}

func (c *Client) publish(kind provider.EventKind, s *models.Session) {
	c.bc.Publish(provider.Event{Kind: kind, Session: s.Clone()})
}

// GetSession returns the current session, refreshing it first when the
// access token has expired.
func (c *Client) GetSession(ctx context.Context) (*models.Session, error) {
	if err := c.b.hit(ctx, OpGetSession); err != nil {
		return nil, err
	}
	cur := c.current()
	if cur == nil || !cur.Expired(c.b.opts.Now()) {
		return cur, nil
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	next, err := c.b.refreshLocked(cur.RefreshToken)
	c.b.mu.Unlock()
	if err != nil {
		c.setSession(nil)
		c.publish(provider.EventSignedOut, nil)
		return nil, nil
	}
	c.setSession(next)
	c.publish(provider.EventTokenRefreshed, next)
	return next.Clone(), nil
}

// SignInWithPassword checks the credentials and starts a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	if err := c.b.hit(ctx, OpSignIn); err != nil {
		return nil, err
	}

	c.b.mu.Lock()
	u, ok := c.b.usersByEmail[normalizeEmail(email)]
	var hash []byte
	if ok {
		hash = u.hash
	}
	c.b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return nil, &provider.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	if u.confirmedAt == nil {
		c.b.mu.Unlock()
		return nil, &provider.Error{Status: http.StatusBadRequest, Code: "email_not_confirmed", Message: "Email not confirmed"}
	}
	s := c.b.issueLocked(u, false)
	c.b.mu.Unlock()

	c.setSession(s)
	c.publish(provider.EventSignedIn, s)
	return s, nil
}

// SignUp creates an account. Unless AutoConfirm is set the account must be
// confirmed through the emailed link before it can sign in.
func (c *Client) SignUp(ctx context.Context, p provider.SignUpParams) (*provider.SignUpResult, error) {
	if err := c.b.hit(ctx, OpSignUp); err != nil {
		return nil, err
	}
	if len(p.Password) < 6 {
		return nil, &provider.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), c.b.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	key := normalizeEmail(p.Email)
	if _, exists := c.b.usersByEmail[key]; exists {
		c.b.mu.Unlock()
		return nil, errUserExists()
	}
	u := &user{
		id:       uuid.NewString(),
		email:    key,
		hash:     hash,
		metadata: p.Data,
	}
	c.b.usersByEmail[key] = u
	c.b.usersByID[u.id] = u
	if c.b.opts.ProfileTrigger {
		c.b.profiles[u.id] = profileFromMetadata(u.id, p.Data)
	}

	var (
		sess      *models.Session
		tokenHash string
	)
	if c.b.opts.AutoConfirm {
		now := c.b.opts.Now().UTC()
		u.confirmedAt = &now
		sess = c.b.issueLocked(u, false)
	} else {
		tokenHash = uuid.NewString()
		c.b.tokens[tokenHash] = otpToken{userID: u.id, kind: tokenSignup}
	}
	ident := u.identity()
	c.b.mu.Unlock()

	if tokenHash != "" {
		link := withQuery(p.RedirectTo, url.Values{"token_hash": {tokenHash}, "type": {provider.OTPTypeEmail}})
		c.b.sendLink(ctx, key, mailer.BuildConfirmationEmail(mailer.LinkEmailData{
			SiteName:  c.b.opts.SiteName,
			Link:      link,
			ExpiresIn: "24 hours",
		}))
	}
	if sess != nil {
		c.setSession(sess)
		c.publish(provider.EventSignedIn, sess)
	}
	return &provider.SignUpResult{User: &ident, Session: sess.Clone()}, nil
}

// SignOut revokes the current session. The SIGNED_OUT notification is
// published even when there was no session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.b.hit(ctx, OpSignOut); err != nil {
		return err
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if cur := c.current(); cur != nil {
		c.b.mu.Lock()
		c.b.revokeLocked(cur.AccessToken)
		c.b.mu.Unlock()
	}
	c.setSession(nil)
	c.publish(provider.EventSignedOut, nil)
	return nil
}

// ResetPasswordForEmail mails a recovery link carrying a recovery session.
// Unknown addresses succeed silently.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if err := c.b.hit(ctx, OpResetPassword); err != nil {
		return err
	}

	c.b.mu.Lock()
	u, ok := c.b.usersByEmail[normalizeEmail(email)]
	if !ok {
		c.b.mu.Unlock()
		return nil
	}
	s := c.b.issueLocked(u, true)
	c.b.mu.Unlock()

	fragment := url.Values{
		"access_token":  {s.AccessToken},
		"refresh_token": {s.RefreshToken},
		"expires_in":    {strconv.Itoa(int(c.b.opts.SessionTTL / time.Second))},
		"type":          {"recovery"},
	}
	link := redirectTo + "#" + fragment.Encode()
	c.b.sendLink(ctx, u.email, mailer.BuildRecoveryEmail(mailer.LinkEmailData{
		SiteName:  c.b.opts.SiteName,
		Link:      link,
		ExpiresIn: "1 hour",
	}))
	return nil
}

// UpdatePassword changes the password of the signed-in account.
func (c *Client) UpdatePassword(ctx context.Context, password string) (*models.Identity, error) {
	if err := c.b.hit(ctx, OpUpdatePassword); err != nil {
		return nil, err
	}
	cur := c.current()
	if cur == nil {
		return nil, provider.ErrNoSession
	}
	if len(password) < 6 {
		return nil, &provider.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.b.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	u, ok := c.b.usersByID[cur.User.ID]
	if !ok {
		c.b.mu.Unlock()
		return nil, errUserNotFound()
	}
	u.hash = hash
	ident := u.identity()
	c.b.mu.Unlock()

	cur.User = ident
	c.setSession(cur)
	c.publish(provider.EventUserUpdated, cur)
	return &ident, nil
}

// VerifyOTP redeems a confirmation token from a sign-up email and signs
// the account in.
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (*models.Session, error) {
	if err := c.b.hit(ctx, OpVerifyOTP); err != nil {
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	tok, ok := c.b.tokens[tokenHash]
	if !ok || otpType != provider.OTPTypeEmail || tok.kind != tokenSignup {
		c.b.mu.Unlock()
		return nil, &provider.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
	}
	delete(c.b.tokens, tokenHash)
	u, ok := c.b.usersByID[tok.userID]
	if !ok {
		c.b.mu.Unlock()
		return nil, errUserNotFound()
	}
	now := c.b.opts.Now().UTC()
	u.confirmedAt = &now
	s := c.b.issueLocked(u, false)
	c.b.mu.Unlock()

	c.setSession(s)
	c.publish(provider.EventSignedIn, s)
	return s, nil
}

// GetUser returns the identity of the signed-in account.
func (c *Client) GetUser(ctx context.Context) (*models.Identity, error) {
	if err := c.b.hit(ctx, OpGetUser); err != nil {
		return nil, err
	}
	cur := c.current()
	if cur == nil {
		return nil, provider.ErrNoSession
	}
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	rec, ok := c.b.byAccess[cur.AccessToken]
	if !ok || !c.b.opts.Now().Before(rec.expiresAt) {
		return nil, &provider.Error{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT: token is expired"}
	}
	u, ok := c.b.usersByID[rec.userID]
	if !ok {
		return nil, errUserNotFound()
	}
	ident := u.identity()
	return &ident, nil
}

// SetSession adopts tokens delivered out of band. A recovery session
// publishes PASSWORD_RECOVERY, anything else SIGNED_IN.
func (c *Client) SetSession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	if err := c.b.hit(ctx, OpSetSession); err != nil {
		return nil, err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.b.mu.Lock()
	var s *models.Session
	rec, ok := c.b.byAccess[accessToken]
	switch {
	case ok && c.b.opts.Now().Before(rec.expiresAt):
		u, found := c.b.usersByID[rec.userID]
		if !found {
			c.b.mu.Unlock()
			return nil, errUserNotFound()
		}
		s = c.b.sessionLocked(rec, u)
	default:
		var err error
		s, err = c.b.refreshLocked(refreshToken)
		if err != nil {
			c.b.mu.Unlock()
			return nil, err
		}
	}
	c.b.mu.Unlock()

	c.setSession(s)
	kind := provider.EventSignedIn
	if s.Recovery {
		kind = provider.EventPasswordRecovery
	}
	c.publish(kind, s)
	return s, nil
}

func profileFromMetadata(id string, data map[string]any) models.Profile {
	p := models.Profile{ID: id}
	if name, ok := data["name"].(string); ok && name != "" {
		p.Name = &name
	}
	switch roles := data["roles"].(type) {
	case []models.Role:
		p.Roles = append([]models.Role{}, roles...)
	case []string:
		for _, r := range roles {
			p.Roles = append(p.Roles, models.Role(r))
		}
	case []any:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				p.Roles = append(p.Roles, models.Role(s))
			}
		}
	}
	switch active := data["active_role"].(type) {
	case models.Role:
		p.ActiveRole = active
	case string:
		p.ActiveRole = models.Role(active)
	}
	if p.ActiveRole != "" {
		p.Role = p.ActiveRole
	}
	return p
}
