package authsession_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"github.com/dalemusser/bisontutor/internal/app/system/memprovider"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
)

func TestRegister_StudentAndTutor(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	res, err := h.m.Register(context.Background(), authsession.RegisterInput{
		Name:     "A",
		Email:    "a@bison.howard.edu",
		Password: "abcdef",
		Roles:    []models.Role{models.RoleStudent, models.RoleTutor},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.User == nil {
		t.Fatal("expected a user in the sign-up result")
	}

	row, ok := h.backend.Profile(res.User.ID)
	if !ok {
		t.Fatal("base profile row missing")
	}
	if row.ActiveRole != models.RoleStudent {
		t.Errorf("ActiveRole = %q, want student", row.ActiveRole)
	}
	if len(row.Roles) != 2 || row.Name == nil || *row.Name != "A" {
		t.Errorf("unexpected profile row %+v", row)
	}
	if _, ok := h.backend.TutorProfile(res.User.ID); !ok {
		t.Error("tutor profile row missing")
	}

	mail, ok := h.outbox.Last("a@bison.howard.edu")
	if !ok {
		t.Fatal("no confirmation email")
	}
	if link := linkFrom(t, mail); link.Path != "/verify-email" || link.Host != "localhost:8080" {
		t.Errorf("confirmation link = %s", link)
	}
	if !h.audit.has("registered") || !h.audit.has("row_created:profiles") || !h.audit.has("row_created:tutor_profiles") {
		t.Error("expected registration audits")
	}
}

func TestRegister_TriggerRowsAreNotDuplicated(t *testing.T) {
	h := newHarness(t, harnessOpts{mem: memprovider.Options{ProfileTrigger: true}})

	res, err := h.m.Register(context.Background(), authsession.RegisterInput{
		Name:     "B",
		Email:    "b@bison.howard.edu",
		Password: "abcdef",
		Roles:    []models.Role{models.RoleStudent},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n := h.backend.Calls(memprovider.OpInsertProfile); n != 0 {
		t.Errorf("InsertProfile called %d times; trigger row exists", n)
	}
	if n := h.backend.Calls(memprovider.OpGetTutorProfile); n != 0 {
		t.Errorf("tutor check ran for a student-only account")
	}
	if _, ok := h.backend.Profile(res.User.ID); !ok {
		t.Error("trigger row missing")
	}
}

func TestRegister_RowFailureDoesNotFail(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.backend.InjectFault(memprovider.OpInsertProfile, memprovider.Fault{Err: &provider.Error{Status: 401, Message: "new row violates row-level security policy"}})

	res, err := h.m.Register(context.Background(), authsession.RegisterInput{
		Name:     "C",
		Email:    "c@bison.howard.edu",
		Password: "abcdef",
		Roles:    []models.Role{models.RoleStudent},
	})
	if err != nil || res == nil {
		t.Fatalf("Register = %v, %v", res, err)
	}
	if !h.audit.has("row_failed:profiles") {
		t.Error("expected row_failed audit")
	}
}

func TestRegister_ValidationBeforeProviderCall(t *testing.T) {
	tests := []struct {
		name string
		in   authsession.RegisterInput
		want error
	}{
		{"wrong domain", authsession.RegisterInput{Email: "a@gmail.com", Password: "abcdef", Roles: []models.Role{models.RoleStudent}}, authsession.ErrInvalidDomain},
		{"lookalike domain", authsession.RegisterInput{Email: "a@notbison.howard.edu.evil.com", Password: "abcdef", Roles: []models.Role{models.RoleStudent}}, authsession.ErrInvalidDomain},
		{"no roles", authsession.RegisterInput{Email: "a@bison.howard.edu", Password: "abcdef"}, authsession.ErrNoRoleSelected},
		{"bad role", authsession.RegisterInput{Email: "a@bison.howard.edu", Password: "abcdef", Roles: []models.Role{"admin"}}, authsession.ErrInvalidRole},
		{"weak password", authsession.RegisterInput{Email: "a@bison.howard.edu", Password: "abc", Roles: []models.Role{models.RoleTutor}}, authsession.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, harnessOpts{})
			_, err := h.m.Register(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
			if n := h.backend.Calls(memprovider.OpSignUp); n != 0 {
				t.Errorf("provider called %d times", n)
			}
		})
	}
}

func TestRegister_AlreadyRegistered(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.seedUser("a@bison.howard.edu", models.Profile{})

	_, err := h.m.Register(context.Background(), authsession.RegisterInput{
		Email:    "a@bison.howard.edu",
		Password: "abcdef",
		Roles:    []models.Role{models.RoleStudent},
	})
	if !errors.Is(err, authsession.ErrAlreadyRegistered) {
		t.Errorf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.seedUser("a@bison.howard.edu", models.Profile{})
	ctx := context.Background()

	err := h.m.ResetPassword(ctx, "a@gmail.com")
	if !errors.Is(err, authsession.ErrInvalidDomain) {
		t.Fatalf("got %v, want ErrInvalidDomain", err)
	}
	if err.Error() != "only @bison.howard.edu emails are allowed" {
		t.Errorf("message = %q", err.Error())
	}
	if n := h.backend.Calls(memprovider.OpResetPassword); n != 0 {
		t.Fatalf("provider called %d times for invalid domain", n)
	}

	if err := h.m.ResetPassword(ctx, "a@bison.howard.edu"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	mail, ok := h.outbox.Last("a@bison.howard.edu")
	if !ok {
		t.Fatal("no reset email")
	}
	if link := linkFrom(t, mail); link.Path != "/reset-password" {
		t.Errorf("reset link = %s", link)
	}
}

func TestUpdatePassword_Validation(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.waitFor("settled", func(st authsession.State) bool { return !st.Loading() })
	ctx := context.Background()

	if err := h.m.UpdatePassword(ctx, "short"); !errors.Is(err, authsession.ErrWeakPassword) {
		t.Errorf("got %v, want ErrWeakPassword", err)
	}
	if err := h.m.UpdatePassword(ctx, "longenough"); !errors.Is(err, authsession.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
	if n := h.backend.Calls(memprovider.OpUpdatePassword); n != 0 {
		t.Errorf("provider called %d times", n)
	}
}

func TestRecoveryFlow(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.seedUser("a@bison.howard.edu", models.Profile{Roles: []models.Role{models.RoleStudent}})
	h.waitFor("settled", func(st authsession.State) bool { return !st.Loading() })
	ctx := context.Background()

	if err := h.m.ResetPassword(ctx, "a@bison.howard.edu"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	mail, _ := h.outbox.Last("a@bison.howard.edu")
	frag, err := url.ParseQuery(linkFrom(t, mail).Fragment)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}

	if _, err := h.m.AdoptRecoverySession(ctx, frag.Get("access_token"), frag.Get("refresh_token")); err != nil {
		t.Fatalf("AdoptRecoverySession: %v", err)
	}
	st := h.waitFor("recovery session", func(st authsession.State) bool { return st.SignedIn() })
	if st.Session == nil || !st.Session.Recovery {
		t.Errorf("expected recovery session, got %+v", st.Session)
	}

	if err := h.m.UpdatePassword(ctx, "brand-new"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	h.waitFor("signed out after password update", func(st authsession.State) bool {
		return st.Status == authsession.StatusAnonymous
	})
	if !h.audit.has("password_updated") {
		t.Error("expected password_updated audit")
	}

	if _, err := h.m.Login(ctx, "a@bison.howard.edu", "brand-new"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
}

func TestAdoptRecoverySession_BadTokens(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	_, err := h.m.AdoptRecoverySession(context.Background(), "nope", "nope")
	if !errors.Is(err, authsession.ErrNoActiveSession) {
		t.Errorf("got %v, want ErrNoActiveSession", err)
	}
}

func TestVerifyEmail(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.waitFor("settled", func(st authsession.State) bool { return !st.Loading() })
	ctx := context.Background()

	if _, err := h.m.Register(ctx, authsession.RegisterInput{
		Name:     "V",
		Email:    "v@bison.howard.edu",
		Password: "abcdef",
		Roles:    []models.Role{models.RoleStudent},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	mail, _ := h.outbox.Last("v@bison.howard.edu")
	link := linkFrom(t, mail)

	if _, err := h.m.VerifyEmail(ctx, link.Query().Get("token_hash")); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	st := h.waitFor("hydrated", func(st authsession.State) bool { return st.SignedIn() && st.ProfileHydrated })
	if st.User.ActiveRole != models.RoleStudent {
		t.Errorf("ActiveRole = %q", st.User.ActiveRole)
	}
	if !h.audit.has("email_verified") {
		t.Error("expected email_verified audit")
	}

	if _, err := h.m.VerifyEmail(ctx, ""); err == nil {
		t.Error("empty token should fail")
	}
}
