package auditlog_test

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/bisontutor/internal/app/store/audit"
	"github.com/dalemusser/bisontutor/internal/app/system/auditlog"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/dalemusser/bisontutor/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSucceeded(ctx, "u1", "a@bison.howard.edu")
	logger.LoggedOut(ctx, "u1", "a@bison.howard.edu")
	logger.RoleRollbackFailed(ctx, "u1", models.RoleTutor, errors.New("boom"))
}

func TestLogger_LogOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: "log", Role: "log"})

	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	req.Header.Set("User-Agent", "test-agent")
	ctx := auditlog.WithRequest(req.Context(), req)

	logger.LoginFailed(ctx, "a@bison.howard.edu", "Email not confirmed", true)
	logger.RoleSwitched(ctx, "u1", models.RoleStudent, models.RoleTutor)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	first := entries[0].ContextMap()
	if first["event_type"] != audit.EventLoginFailedUnverified {
		t.Errorf("event_type = %v, want %q", first["event_type"], audit.EventLoginFailedUnverified)
	}
	if first["ip"] != "10.0.0.1" {
		t.Errorf("ip = %v, want 10.0.0.1", first["ip"])
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("failed login should log at warn, got %v", entries[0].Level)
	}

	second := entries[1].ContextMap()
	if second["detail_from"] != "student" || second["detail_to"] != "tutor" {
		t.Errorf("unexpected role switch details: %v", second)
	}
}

func TestLogger_CategoryOff(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := auditlog.New(nil, zap.New(core), auditlog.Config{Auth: "off", Role: "log"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger.LoginSucceeded(ctx, "u1", "a@bison.howard.edu")
	if logs.Len() != 0 {
		t.Errorf("expected no entries with auth off, got %d", logs.Len())
	}

	logger.RoleAdded(ctx, "u1", models.RoleTutor, []models.Role{models.RoleStudent, models.RoleTutor})
	if logs.Len() != 1 {
		t.Errorf("expected role event to be logged, got %d", logs.Len())
	}
}

func TestLogger_ConfigDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db", Role: "db"})

	logger.Registered(ctx, "u1", "a@bison.howard.edu", []models.Role{models.RoleStudent, models.RoleTutor})
	logger.RoleAddRolledBack(ctx, "u1", models.RoleTutor, errors.New("tutor row insert failed"))

	events, err := store.GetByUser(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	var registered *audit.Event
	for i := range events {
		if events[i].EventType == audit.EventRegistered {
			registered = &events[i]
		}
	}
	if registered == nil {
		t.Fatal("registered event not stored")
	}
	if registered.Details["roles"] != "student,tutor" {
		t.Errorf("roles detail = %q", registered.Details["roles"])
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "9.9.9.9:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "3.3.3.3"}, "9.9.9.9:1", "3.3.3.3"},
		{"remote addr", nil, "9.9.9.9:1", "9.9.9.9:1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := auditlog.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
