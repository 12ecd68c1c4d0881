package authsession_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/mailer"
	"github.com/dalemusser/bisontutor/internal/app/system/memprovider"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"golang.org/x/crypto/bcrypt"
)

const testDomain = "bison.howard.edu"

type harness struct {
	t       *testing.T
	backend *memprovider.Backend
	client  *memprovider.Client
	outbox  *mailer.Outbox
	audit   *recordingAuditor
	m       *authsession.Manager
}

type harnessOpts struct {
	mem       memprovider.Options
	cfg       authsession.Config
	rows      func(provider.Rows) provider.Rows
	noStart   bool
	faultInit *memprovider.Fault
}

func newHarness(t *testing.T, ho harnessOpts) *harness {
	t.Helper()

	outbox := mailer.NewOutbox(nil)
	ho.mem.BcryptCost = bcrypt.MinCost
	ho.mem.Mailer = outbox
	b := memprovider.New(ho.mem)
	c := b.NewClient()

	cfg := ho.cfg
	if cfg.Domain == "" {
		cfg.Domain = testDomain
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.BootstrapTimeout == 0 {
		cfg.BootstrapTimeout = 2 * time.Second
	}
	if cfg.SignOutTimeout == 0 {
		cfg.SignOutTimeout = 100 * time.Millisecond
	}
	if cfg.ProfileTriggerDelay == 0 {
		cfg.ProfileTriggerDelay = -1
	}
	if cfg.TutorTriggerDelay == 0 {
		cfg.TutorTriggerDelay = -1
	}

	var rows provider.Rows = b
	if ho.rows != nil {
		rows = ho.rows(b)
	}
	if ho.faultInit != nil {
		b.InjectFault(memprovider.OpGetSession, *ho.faultInit)
	}

	audit := &recordingAuditor{}
	m := authsession.New(c, rows, nil, cfg, authsession.WithAuditor(audit))
	if !ho.noStart {
		m.Start(context.Background())
	}
	t.Cleanup(m.Close)

	return &harness{t: t, backend: b, client: c, outbox: outbox, audit: audit, m: m}
}

// seedUser creates a confirmed account and its profile row.
func (h *harness) seedUser(email string, p models.Profile) models.Identity {
	h.t.Helper()
	ident, err := h.backend.CreateUser(email, "abcdef", nil)
	if err != nil {
		h.t.Fatalf("CreateUser: %v", err)
	}
	p.ID = ident.ID
	h.backend.PutProfile(p)
	return ident
}

func (h *harness) waitFor(what string, cond func(authsession.State) bool) authsession.State {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	st, err := h.m.WaitUntil(ctx, cond)
	if err != nil {
		h.t.Fatalf("timed out waiting for %s; last state %+v", what, st)
	}
	return st
}

func (h *harness) login(email string) authsession.State {
	h.t.Helper()
	h.waitFor("settled", func(st authsession.State) bool { return !st.Loading() })
	if _, err := h.m.Login(context.Background(), email, "abcdef"); err != nil {
		h.t.Fatalf("Login: %v", err)
	}
	return h.waitFor("hydrated", func(st authsession.State) bool {
		return st.SignedIn() && st.ProfileHydrated
	})
}

// linkFrom returns the link line of a mailer email.
func linkFrom(t *testing.T, e mailer.Email) *url.URL {
	t.Helper()
	lines := strings.Split(e.TextBody, "\n")
	if len(lines) < 2 {
		t.Fatalf("email has no link: %q", e.TextBody)
	}
	u, err := url.Parse(strings.TrimSpace(lines[1]))
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

// recordingAuditor keeps the names of audited events.
type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAuditor) add(name string) {
	a.mu.Lock()
	a.events = append(a.events, name)
	a.mu.Unlock()
}

func (a *recordingAuditor) has(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.events {
		if e == name {
			return true
		}
	}
	return false
}

func (a *recordingAuditor) LoginSucceeded(context.Context, string, string) { a.add("login_success") }
func (a *recordingAuditor) LoginFailed(_ context.Context, _, _ string, unverified bool) {
	if unverified {
		a.add("login_failed_unverified")
		return
	}
	a.add("login_failed")
}
func (a *recordingAuditor) LoggedOut(context.Context, string, string) { a.add("logout") }
func (a *recordingAuditor) Registered(context.Context, string, string, []models.Role) {
	a.add("registered")
}
func (a *recordingAuditor) PasswordResetRequested(context.Context, string) {
	a.add("password_reset_requested")
}
func (a *recordingAuditor) PasswordUpdated(context.Context, string, string) {
	a.add("password_updated")
}
func (a *recordingAuditor) EmailVerified(context.Context, string, string) { a.add("email_verified") }
func (a *recordingAuditor) RoleSwitched(context.Context, string, models.Role, models.Role) {
	a.add("role_switched")
}
func (a *recordingAuditor) RoleAdded(context.Context, string, models.Role, []models.Role) {
	a.add("role_added")
}
func (a *recordingAuditor) RoleAddRolledBack(context.Context, string, models.Role, error) {
	a.add("role_add_rolled_back")
}
func (a *recordingAuditor) RoleRollbackFailed(context.Context, string, models.Role, error) {
	a.add("role_rollback_failed")
}
func (a *recordingAuditor) ProfileRowCreated(_ context.Context, _, table string) {
	a.add("row_created:" + table)
}
func (a *recordingAuditor) ProfileRowFailed(_ context.Context, _, table string, _ error) {
	a.add("row_failed:" + table)
}
