package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/memprovider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const password = "abcdef"

type fixture struct {
	sm      *auth.SessionManager
	reg     *auth.Registry
	backend *memprovider.Backend
	obs     *countingObserver
}

type countingObserver struct {
	open, closed, evicted atomic.Int32
}

func (o *countingObserver) ClientOpened() { o.open.Add(1) }
func (o *countingObserver) ClientClosed(evicted bool) {
	o.closed.Add(1)
	if evicted {
		o.evicted.Add(1)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", 24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	sm.SetSettleLimit(time.Second)

	b := memprovider.New(memprovider.Options{BcryptCost: bcrypt.MinCost})
	obs := &countingObserver{}
	reg := auth.NewRegistry(func(string) (*authsession.Manager, error) {
		return authsession.New(b.NewClient(), b, nil, authsession.Config{
			Domain:              "bison.howard.edu",
			BootstrapTimeout:    time.Second,
			ProfileTriggerDelay: -1,
			TutorTriggerDelay:   -1,
		}), nil
	}, obs, zap.NewNop())
	t.Cleanup(reg.Close)

	return &fixture{sm: sm, reg: reg, backend: b, obs: obs}
}

// signedIn returns a request carrying a signed-in client with the given
// profile.
func (f *fixture) signedIn(t *testing.T, p models.Profile, method, target string) *http.Request {
	t.Helper()
	ident, err := f.backend.CreateUser("u@bison.howard.edu", password, nil)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	p.ID = ident.ID
	f.backend.PutProfile(p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := f.reg.Get(ctx, "client-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := m.WaitSettled(ctx); err != nil {
		t.Fatalf("WaitSettled: %v", err)
	}
	if _, err := m.Login(ctx, "u@bison.howard.edu", password); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := m.WaitUntil(ctx, func(st authsession.State) bool { return st.SignedIn() && st.ProfileHydrated }); err != nil {
		t.Fatalf("hydration: %v", err)
	}
	return auth.WithClient(httptest.NewRequest(method, target, nil), "client-1", m)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewSessionManager_EmptyKey(t *testing.T) {
	if _, err := auth.NewSessionManager("", "x", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestClientID_MintedOnceAndReused(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	id, err := f.sm.ClientID(rec, httptest.NewRequest("GET", "/", nil))
	if err != nil || len(id) != 48 {
		t.Fatalf("ClientID = %q, %v", id, err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("expected one HttpOnly cookie, got %+v", cookies)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	again, err := f.sm.ClientID(rec2, req)
	if err != nil || again != id {
		t.Errorf("second ClientID = %q, %v; want %q", again, err, id)
	}
	if len(rec2.Result().Cookies()) != 0 {
		t.Error("existing cookie should not be rewritten")
	}
}

func TestClientID_TamperedCookieGetsNewID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "test-session", Value: "garbage"})

	id, err := f.sm.ClientID(httptest.NewRecorder(), req)
	if err != nil || id == "" {
		t.Errorf("ClientID = %q, %v", id, err)
	}
}

func TestLoadClient_AttachesManager(t *testing.T) {
	f := newFixture(t)

	var got *authsession.Manager
	h := f.sm.LoadClient(f.reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.Client(r)
		if auth.ClientIDFrom(r) == "" {
			t.Error("client id missing from context")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/session", nil))

	if got == nil {
		t.Fatal("manager not attached")
	}
	if f.reg.Len() != 1 || f.obs.open.Load() != 1 {
		t.Errorf("registry len = %d, opened = %d", f.reg.Len(), f.obs.open.Load())
	}
}

func TestRequireSignedIn_Anonymous(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantCode int
		check    func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:     "html redirects to login",
			headers:  map[string]string{"Accept": "text/html"},
			wantCode: http.StatusSeeOther,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if loc := rec.Header().Get("Location"); loc != "/login?return=%2Fhelp-requests%3Fstatus%3Dpending" {
					t.Errorf("Location = %q", loc)
				}
			},
		},
		{
			name:     "htmx gets HX-Redirect",
			headers:  map[string]string{"HX-Request": "true"},
			wantCode: http.StatusUnauthorized,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if !strings.HasPrefix(rec.Header().Get("HX-Redirect"), "/login?return=") {
					t.Errorf("HX-Redirect = %q", rec.Header().Get("HX-Redirect"))
				}
			},
		},
		{
			name:     "api gets 401 json",
			headers:  map[string]string{"Accept": "application/json"},
			wantCode: http.StatusUnauthorized,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if !strings.Contains(rec.Body.String(), `"error":"not authenticated"`) {
					t.Errorf("body = %s", rec.Body.String())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m, err := f.reg.Get(context.Background(), "anon")
			if err != nil {
				t.Fatal(err)
			}
			req := auth.WithClient(httptest.NewRequest("GET", "/help-requests?status=pending", nil), "anon", m)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			f.sm.RequireSignedIn(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			tt.check(t, rec)
		})
	}
}

func TestRequireSignedIn_NoClient(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.sm.RequireSignedIn(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireSignedIn_SignedIn(t *testing.T) {
	f := newFixture(t)
	req := f.signedIn(t, models.Profile{Roles: []models.Role{models.RoleStudent}}, "GET", "/profile")

	rec := httptest.NewRecorder()
	f.sm.RequireSignedIn(okHandler()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		profile  models.Profile
		accept   string
		wantCode int
		wantLoc  string
	}{
		{"has role", models.Profile{Roles: []models.Role{models.RoleStudent, models.RoleTutor}, ActiveRole: models.RoleStudent}, "application/json", http.StatusOK, ""},
		{"legacy role counts", models.Profile{Role: models.RoleTutor}, "application/json", http.StatusOK, ""},
		{"roles not loaded yet", models.Profile{}, "application/json", http.StatusOK, ""},
		{"missing role api", models.Profile{Roles: []models.Role{models.RoleStudent}}, "application/json", http.StatusForbidden, ""},
		{"missing role html", models.Profile{Roles: []models.Role{models.RoleStudent}}, "text/html", http.StatusSeeOther, "/student/profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.signedIn(t, tt.profile, "GET", "/transcript/status")
			req.Header.Set("Accept", tt.accept)

			rec := httptest.NewRecorder()
			f.sm.RequireRole(models.RoleTutor)(okHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLoc)
			}
		})
	}
}

func TestRegistry_EvictIdleAndClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.reg.Get(ctx, "a")
	if _, err := f.reg.Get(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if again, _ := f.reg.Get(ctx, "a"); again != a {
		t.Fatal("Get should return the same manager for the same id")
	}

	time.Sleep(20 * time.Millisecond)
	f.reg.Get(ctx, "b")
	if n := f.reg.EvictIdle(10 * time.Millisecond); n != 1 {
		t.Fatalf("EvictIdle = %d, want 1", n)
	}
	if _, ok := f.reg.Lookup("a"); ok {
		t.Error("a should be evicted")
	}
	if err := a.SwitchRole(ctx, models.RoleTutor); err != authsession.ErrClosed {
		t.Errorf("evicted manager should be closed, got %v", err)
	}
	if f.obs.evicted.Load() != 1 {
		t.Errorf("evicted = %d", f.obs.evicted.Load())
	}

	f.reg.Close()
	if _, err := f.reg.Get(ctx, "c"); err != auth.ErrRegistryClosed {
		t.Errorf("Get after Close = %v", err)
	}
	if f.reg.Len() != 0 || f.obs.closed.Load() != 2 {
		t.Errorf("len = %d, closed = %d", f.reg.Len(), f.obs.closed.Load())
	}
}
