package mailer

import (
	"context"
	"strings"
	"testing"
)

func TestBuildConfirmationEmail(t *testing.T) {
	e := BuildConfirmationEmail(LinkEmailData{
		SiteName:  "Bison Tutor",
		Link:      "http://localhost/verify-email?token_hash=abc&type=email",
		ExpiresIn: "24 hours",
	})
	if !strings.Contains(e.Subject, "Bison Tutor") {
		t.Errorf("subject missing site name: %q", e.Subject)
	}
	if !strings.Contains(e.TextBody, "token_hash=abc") {
		t.Errorf("text body missing link: %q", e.TextBody)
	}
	// html/template escapes & inside attributes
	if !strings.Contains(e.HTMLBody, "token_hash=abc&amp;type=email") {
		t.Errorf("html body missing escaped link")
	}
}

func TestOutbox_Last(t *testing.T) {
	o := NewOutbox(nil)
	ctx := context.Background()

	_ = o.Send(ctx, Email{To: "a@x", Subject: "one"})
	_ = o.Send(ctx, Email{To: "b@x", Subject: "two"})
	_ = o.Send(ctx, Email{To: "a@x", Subject: "three"})

	if got := len(o.Sent()); got != 3 {
		t.Fatalf("Sent() len = %d, want 3", got)
	}
	e, ok := o.Last("a@x")
	if !ok || e.Subject != "three" {
		t.Errorf("Last(a@x) = %+v, %v", e, ok)
	}
	if _, ok := o.Last("c@x"); ok {
		t.Error("Last(c@x) should not be found")
	}
}
