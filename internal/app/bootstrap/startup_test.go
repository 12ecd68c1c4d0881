package bootstrap

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "bison_tutor_test",
		SessionKey:          "test-session-key-for-testing-only-0123456789",
		SessionName:         "test-session",
		SessionMaxAge:       time.Hour,
		AuthBackend:         backendMemory,
		ProfileBackend:      backendProvider,
		APIBaseURL:          "http://127.0.0.1:8000",
		BaseURL:             "http://localhost:3000",
		InstitutionDomain:   "bison.howard.edu",
		BootstrapTimeout:    time.Second,
		SignOutTimeout:      time.Second,
		ProfileTriggerDelay: -1,
		TutorTriggerDelay:   -1,
		ClientIdleTimeout:   time.Minute,
		ClientSweepInterval: time.Minute,
		AuditLogAuth:        "log",
		RateLimitPerMinute:  10,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"no mongo", func(c *AppConfig) { c.MongoURI = "" }, ""},
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "postgres://x" }, "invalid MongoDB URI"},
		{"supabase without url", func(c *AppConfig) { c.AuthBackend = backendSupabase }, "supabase_url"},
		{"supabase complete", func(c *AppConfig) {
			c.AuthBackend = backendSupabase
			c.SupabaseURL = "https://xyz.supabase.co"
			c.SupabaseAnonKey = "anon"
		}, ""},
		{"unknown auth backend", func(c *AppConfig) { c.AuthBackend = "firebase" }, "unknown auth_backend"},
		{"unknown profile backend", func(c *AppConfig) { c.ProfileBackend = "sql" }, "unknown profile_backend"},
		{"mongo profiles without mongo", func(c *AppConfig) {
			c.ProfileBackend = backendMongo
			c.MongoURI = ""
		}, "requires mongo_uri"},
		{"empty domain", func(c *AppConfig) { c.InstitutionDomain = "" }, "institution_domain"},
		{"bad audit mode", func(c *AppConfig) { c.AuditLogAuth = "sometimes" }, "audit_log_auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: "dev"}, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewClientFactory_MongoProfilesNeedDB(t *testing.T) {
	cfg := validConfig()
	cfg.ProfileBackend = backendMongo
	if _, err := newClientFactory(cfg, DBDeps{}, nil, nil, testLogger()); err == nil {
		t.Fatal("expected error without a database")
	}
}

// newTestServer runs the full router on the memory backend, with the
// tutoring API answered by api.
func newTestServer(t *testing.T, api http.Handler) *http.Client {
	t.Helper()
	t.Cleanup(timeouts.Reset)

	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	cfg := validConfig()
	cfg.MongoURI = ""
	cfg.APIBaseURL = apiSrv.URL

	svc, err := buildServices(cfg, DBDeps{}, testLogger())
	if err != nil {
		t.Fatalf("buildServices: %v", err)
	}
	t.Cleanup(svc.Clients.Close)

	sm, err := auth.NewSessionManager(cfg.SessionKey, cfg.SessionName, "", cfg.SessionMaxAge, false, testLogger())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	srv := httptest.NewServer(newRouter(sm, DBDeps{}, svc, testLogger()))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar, Transport: &baseURLTransport{base: srv.URL}}
	return client
}

// baseURLTransport lets tests write paths instead of full URLs.
type baseURLTransport struct{ base string }

func (b *baseURLTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	u := *r.URL
	target, err := http.NewRequest(r.Method, b.base+u.RequestURI(), r.Body)
	if err != nil {
		return nil, err
	}
	target.Header = r.Header
	target = target.WithContext(r.Context())
	return http.DefaultTransport.RoundTrip(target)
}

func call(t *testing.T, c *http.Client, method, path string, body any) (int, string) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, "http://app.test"+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(out)
}

func pingOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}

func TestRouter_PublicEndpoints(t *testing.T) {
	c := newTestServer(t, pingOK())

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		wantCode int
		wantText string
	}{
		{"health", "GET", "/health", nil, http.StatusOK, `"tutor_api":"reachable"`},
		{"metrics", "GET", "/metrics", nil, http.StatusOK, "bisontutor_"},
		{"session signed out", "GET", "/session?wait=1", nil, http.StatusOK, `"user":null`},
		{"heartbeat", "POST", "/heartbeat", nil, http.StatusOK, `"signed_in":false`},
		{"unknown path", "GET", "/nope", nil, http.StatusNotFound, `"error"`},
		{"wrong method", "GET", "/login", nil, http.StatusMethodNotAllowed, ""},
		{"bad login", "POST", "/login", map[string]string{"email": "nobody@bison.howard.edu", "password": "wrong-password"}, http.StatusUnauthorized, "invalid email or password"},
		{"guarded api", "GET", "/tutors/search", nil, http.StatusUnauthorized, `"error"`},
		{"guarded audit log", "GET", "/audit", nil, http.StatusUnauthorized, `"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := call(t, c, tt.method, tt.path, tt.body)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", code, tt.wantCode, body)
			}
			if !strings.Contains(body, tt.wantText) {
				t.Errorf("body %s does not contain %q", body, tt.wantText)
			}
		})
	}
}

func TestRouter_RegisterNeedsVerification(t *testing.T) {
	c := newTestServer(t, pingOK())

	code, body := call(t, c, "POST", "/register", map[string]any{
		"name":     "Ada Lovelace",
		"email":    "ada@bison.howard.edu",
		"password": "abcdef",
		"roles":    []string{"student"},
	})
	if code != http.StatusCreated {
		t.Fatalf("status = %d (body %s)", code, body)
	}
	if !strings.Contains(body, `"needs_verification":true`) {
		t.Errorf("body = %s", body)
	}

	code, body = call(t, c, "POST", "/register", map[string]any{
		"name":     "Eve",
		"email":    "eve@gmail.com",
		"password": "abcdef",
		"roles":    []string{"student"},
	})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d (body %s)", code, body)
	}
}
