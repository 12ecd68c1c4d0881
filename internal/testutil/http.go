package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/mailer"
	"github.com/dalemusser/bisontutor/internal/app/system/memprovider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"golang.org/x/crypto/bcrypt"
)

// Test account defaults.
const (
	TestDomain   = "bison.howard.edu"
	TestPassword = "abcdef"
	TestBaseURL  = "http://localhost:8080"
)

// Client is one browser's session manager over an in-memory provider.
type Client struct {
	t       *testing.T
	Backend *memprovider.Backend
	Outbox  *mailer.Outbox
	Manager *authsession.Manager
}

// NewClient starts a Manager over a fresh in-memory backend. The manager
// is closed when the test ends.
func NewClient(t *testing.T) *Client {
	t.Helper()
	outbox := mailer.NewOutbox(nil)
	b := memprovider.New(memprovider.Options{BcryptCost: bcrypt.MinCost, Mailer: outbox})
	return newClient(t, b, outbox)
}

// Another returns a second browser sharing the same backend.
func (c *Client) Another() *Client {
	c.t.Helper()
	return newClient(c.t, c.Backend, c.Outbox)
}

func newClient(t *testing.T, b *memprovider.Backend, outbox *mailer.Outbox) *Client {
	m := authsession.New(b.NewClient(), b, nil, authsession.Config{
		Domain:              TestDomain,
		BaseURL:             TestBaseURL,
		BootstrapTimeout:    2 * time.Second,
		SignOutTimeout:      100 * time.Millisecond,
		ProfileTriggerDelay: -1,
		TutorTriggerDelay:   -1,
	})
	m.Start(context.Background())
	t.Cleanup(m.Close)
	return &Client{t: t, Backend: b, Outbox: outbox, Manager: m}
}

// SeedUser creates a confirmed account with a profile row holding roles.
// The first role is active.
func (c *Client) SeedUser(email, name string, roles ...models.Role) models.Identity {
	c.t.Helper()
	ident, err := c.Backend.CreateUser(email, TestPassword, nil)
	if err != nil {
		c.t.Fatalf("CreateUser: %v", err)
	}
	p := models.Profile{ID: ident.ID, Roles: roles, Name: &name}
	if len(roles) > 0 {
		p.ActiveRole = roles[0]
	}
	c.Backend.PutProfile(p)
	return ident
}

// SignIn logs email in and waits until the profile is hydrated.
func (c *Client) SignIn(email string) authsession.State {
	c.t.Helper()
	c.Settle()
	if _, err := c.Manager.Login(context.Background(), email, TestPassword); err != nil {
		c.t.Fatalf("Login: %v", err)
	}
	return c.WaitFor("hydrated", func(st authsession.State) bool {
		return st.SignedIn() && st.ProfileHydrated
	})
}

// Settle waits until the initial session check is done.
func (c *Client) Settle() authsession.State {
	c.t.Helper()
	return c.WaitFor("settled", func(st authsession.State) bool { return !st.Loading() })
}

// WaitFor blocks until cond holds or three seconds pass.
func (c *Client) WaitFor(what string, cond func(authsession.State) bool) authsession.State {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	st, err := c.Manager.WaitUntil(ctx, cond)
	if err != nil {
		c.t.Fatalf("timed out waiting for %s; last state %+v", what, st)
	}
	return st
}

// Attach puts the manager on r the way LoadClient does.
func (c *Client) Attach(r *http.Request) *http.Request {
	return auth.WithClient(r, "test-client", c.Manager)
}

// NewJSONRequest builds a request whose body is v encoded as JSON. A string
// v is sent as-is.
func NewJSONRequest(method, target string, v any) *http.Request {
	var body []byte
	switch b := v.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		body, _ = json.Marshal(v)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if v != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %s)", r.Code, expected, r.Body.String())
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body %s does not contain %q", r.Body.String(), expected)
	}
}

// DecodeJSON decodes the response body into v.
func (r *ResponseRecorder) DecodeJSON(t interface {
	Fatalf(string, ...any)
}, v any) {
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}
