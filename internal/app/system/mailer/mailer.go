// internal/app/system/mailer/mailer.go
package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Email is one outgoing message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers email.
type Sender interface {
	Send(ctx context.Context, e Email) error
}

// Outbox is a Sender that keeps messages in memory and logs them. It is
// what the in-memory auth backend uses in development, where links are
// copied out of the log instead of a mailbox.
type Outbox struct {
	mu     sync.Mutex
	sent   []Email
	logger *zap.Logger
}

// NewOutbox creates an Outbox. logger may be nil.
func NewOutbox(logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{logger: logger}
}

// Send records e.
func (o *Outbox) Send(_ context.Context, e Email) error {
	o.mu.Lock()
	o.sent = append(o.sent, e)
	o.mu.Unlock()

	o.logger.Info("email queued",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("body", e.TextBody))
	return nil
}

// Sent returns a copy of every message sent so far.
func (o *Outbox) Sent() []Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Email(nil), o.sent...)
}

// Last returns the most recent message sent to addr.
func (o *Outbox) Last(addr string) (Email, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == addr {
			return o.sent[i], true
		}
	}
	return Email{}, false
}
