package register_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/features/register"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/dalemusser/bisontutor/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler() *register.Handler {
	logger := zap.NewNop()
	return register.NewHandler(uierrors.NewErrorLogger(logger), logger)
}

type registerBody struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

func tokenFromMail(t *testing.T, c *testutil.Client, addr string) string {
	t.Helper()
	e, ok := c.Outbox.Last(addr)
	if !ok {
		t.Fatalf("no email sent to %s", addr)
	}
	for _, line := range strings.Split(e.TextBody, "\n") {
		u, err := url.Parse(strings.TrimSpace(line))
		if err != nil || u.Scheme == "" {
			continue
		}
		if tok := u.Query().Get("token_hash"); tok != "" {
			return tok
		}
	}
	t.Fatalf("no token in email %q", e.TextBody)
	return ""
}

func TestRegisterThenVerify(t *testing.T) {
	c := testutil.NewClient(t)
	c.Settle()
	h := newTestHandler()

	req := c.Attach(testutil.NewJSONRequest("POST", "/register", registerBody{
		Name:     "  Ada   Lovelace ",
		Email:    "Ada@bison.howard.edu",
		Password: "secret1",
		Roles:    []string{"Tutor", "student"},
	}))
	rec := testutil.NewRecorder()
	h.HandleRegister(rec, req)

	rec.AssertStatus(t, http.StatusCreated)
	var got struct {
		UserID            string `json:"user_id"`
		NeedsVerification bool   `json:"needs_verification"`
		Redirect          string `json:"redirect"`
	}
	rec.DecodeJSON(t, &got)
	if !got.NeedsVerification || got.Redirect != "/verify-email" || got.UserID == "" {
		t.Fatalf("response = %+v", got)
	}
	row, ok := c.Backend.Profile(got.UserID)
	if !ok || row.ActiveRole != models.RoleTutor || row.Name == nil || *row.Name != "Ada Lovelace" {
		t.Errorf("profile row = %+v", row)
	}

	tok := tokenFromMail(t, c, "ada@bison.howard.edu")
	req = c.Attach(testutil.NewJSONRequest("POST", "/register/verify", map[string]string{
		"token_hash": tok,
		"type":       "email",
	}))
	rec = testutil.NewRecorder()
	h.HandleVerify(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	st := c.Manager.State()
	if !st.SignedIn() || st.User.ActiveRole != models.RoleTutor {
		t.Errorf("state after verify = %+v", st)
	}
}

func TestHandleRegister_Rejections(t *testing.T) {
	c := testutil.NewClient(t)
	c.SeedUser("taken@bison.howard.edu", "Taken", models.RoleStudent)
	c.Settle()
	h := newTestHandler()

	tests := []struct {
		name     string
		body     registerBody
		wantCode int
		wantText string
	}{
		{"wrong domain", registerBody{Name: "A", Email: "a@gmail.com", Password: "secret1", Roles: []string{"student"}}, http.StatusBadRequest, "only @bison.howard.edu emails are allowed"},
		{"no roles", registerBody{Name: "A", Email: "a@bison.howard.edu", Password: "secret1"}, http.StatusBadRequest, "select at least one role"},
		{"bad role", registerBody{Name: "A", Email: "a@bison.howard.edu", Password: "secret1", Roles: []string{"admin"}}, http.StatusBadRequest, "role must be"},
		{"weak password", registerBody{Name: "A", Email: "a@bison.howard.edu", Password: "123", Roles: []string{"student"}}, http.StatusBadRequest, "at least 6 characters"},
		{"missing name", registerBody{Email: "a@bison.howard.edu", Password: "secret1", Roles: []string{"student"}}, http.StatusBadRequest, "Full name is required."},
		{"already registered", registerBody{Name: "A", Email: "taken@bison.howard.edu", Password: "secret1", Roles: []string{"student"}}, http.StatusConflict, "already registered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleRegister(rec, c.Attach(testutil.NewJSONRequest("POST", "/register", tt.body)))
			rec.AssertStatus(t, tt.wantCode)
			rec.AssertContains(t, tt.wantText)
		})
	}
}

func TestHandleVerify_BadToken(t *testing.T) {
	c := testutil.NewClient(t)
	c.Settle()
	h := newTestHandler()

	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
	}{
		{"missing", map[string]string{}, http.StatusBadRequest},
		{"wrong type", map[string]string{"token_hash": "x", "type": "magiclink"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := testutil.NewRecorder()
		h.HandleVerify(rec, c.Attach(testutil.NewJSONRequest("POST", "/register/verify", tt.body)))
		rec.AssertStatus(t, tt.wantCode)
	}

	rec := testutil.NewRecorder()
	h.HandleVerify(rec, c.Attach(testutil.NewJSONRequest("POST", "/register/verify", map[string]string{"token_hash": "unknown"})))
	if rec.Code < 400 {
		t.Errorf("unknown token: status %d", rec.Code)
	}
}
