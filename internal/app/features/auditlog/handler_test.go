package auditlog_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/bisontutor/internal/app/features/errors"
	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/app/system/auth"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/dalemusser/bisontutor/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T, store *audit.Store) *auditlog.Handler {
	t.Helper()
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	sm.SetSettleLimit(time.Second)
	return auditlog.NewHandler(store, sm, uierrors.NewErrorLogger(logger), logger)
}

func TestServeList_Unauthenticated(t *testing.T) {
	c := testutil.NewClient(t)
	c.Settle()
	h := newTestHandler(t, nil)

	rec := testutil.NewRecorder()
	h.ServeList(rec, c.Attach(testutil.NewRequest("GET", "/audit")))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeList_WithoutStore(t *testing.T) {
	c := testutil.NewClient(t)
	c.SeedUser("s@bison.howard.edu", "Sam", models.RoleStudent)
	c.SignIn("s@bison.howard.edu")
	h := newTestHandler(t, nil)

	rec := testutil.NewRecorder()
	h.ServeList(rec, c.Attach(testutil.NewRequest("GET", "/audit")))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"enabled":false`)
	rec.AssertContains(t, `"items":[]`)
}

func TestServeList_BadParams(t *testing.T) {
	c := testutil.NewClient(t)
	c.SeedUser("s@bison.howard.edu", "Sam", models.RoleStudent)
	c.SignIn("s@bison.howard.edu")
	h := newTestHandler(t, nil)

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"category", "/audit?category=admin", "category must be auth or role"},
		{"tz", "/audit?tz=Mars/Olympus", "tz must be an IANA time zone"},
		{"since", "/audit?since=yesterday", "since must be a date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.ServeList(rec, c.Attach(testutil.NewRequest("GET", tt.target)))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, tt.want)
		})
	}
}

func TestServeList_OwnEventsOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	store := audit.New(db)

	c := testutil.NewClient(t)
	ident := c.SeedUser("s@bison.howard.edu", "Sam", models.RoleStudent)
	c.SignIn("s@bison.howard.edu")

	ts := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	for _, e := range []audit.Event{
		{Timestamp: ts, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: ident.ID, Success: true},
		{Timestamp: ts.Add(time.Minute), Category: audit.CategoryRole, EventType: audit.EventRoleAdded, UserID: ident.ID, Success: true},
		{Timestamp: ts, Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: "someone-else", Success: true},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	h := newTestHandler(t, store)

	rec := testutil.NewRecorder()
	h.ServeList(rec, c.Attach(testutil.NewRequest("GET", "/audit?tz=America/New_York")))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Enabled  bool   `json:"enabled"`
		Timezone string `json:"timezone"`
		Items    []struct {
			Timestamp string `json:"timestamp"`
			EventType string `json:"event_type"`
		} `json:"items"`
	}
	rec.DecodeJSON(t, &resp)
	if !resp.Enabled || resp.Timezone != "America/New_York" {
		t.Errorf("got enabled=%v timezone=%q", resp.Enabled, resp.Timezone)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Items))
	}
	if resp.Items[0].EventType != audit.EventRoleAdded {
		t.Errorf("newest first: got %q", resp.Items[0].EventType)
	}
	if !strings.HasSuffix(resp.Items[1].Timestamp, "-05:00") {
		t.Errorf("timestamp not in zone: %q", resp.Items[1].Timestamp)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, c.Attach(testutil.NewRequest("GET", "/audit?category=auth")))
	rec.AssertStatus(t, http.StatusOK)
	if strings.Contains(rec.Body.String(), audit.EventRoleAdded) {
		t.Error("category filter not applied")
	}
}
