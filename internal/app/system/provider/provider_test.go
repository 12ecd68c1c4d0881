package provider

import (
	"fmt"
	"testing"
	"time"
)

func TestBroadcaster_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()
	defer sub.Unsubscribe()

	b.Publish(Event{Kind: EventSignedIn})
	b.Publish(Event{Kind: EventSignedOut})

	for _, want := range []EventKind{EventSignedIn, EventSignedOut} {
		select {
		case ev := <-sub.Events():
			if ev.Kind != want {
				t.Errorf("got %s, want %s", ev.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestBroadcaster_UnsubscribeUnblocksPublish(t *testing.T) {
	b := NewBroadcaster()
	sub := b.Subscribe()

	// Fill the buffer so the next publish would block.
	for i := 0; i < cap(sub.ch); i++ {
		b.Publish(Event{Kind: EventTokenRefreshed})
	}

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: EventSignedOut})
		close(done)
	}()

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after unsubscribe")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err      error
		dup, nf  bool
	}{
		{&Error{Code: CodeUniqueViolation}, true, false},
		{&Error{Status: 409}, true, false},
		{&Error{Code: CodeNoRows}, false, true},
		{&Error{Status: 406}, false, true},
		{fmt.Errorf("wrapped: %w", &Error{Status: 404}), false, true},
		{fmt.Errorf("plain"), false, false},
	}
	for _, tt := range tests {
		if got := IsDuplicate(tt.err); got != tt.dup {
			t.Errorf("IsDuplicate(%v) = %v, want %v", tt.err, got, tt.dup)
		}
		if got := IsNotFound(tt.err); got != tt.nf {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.nf)
		}
	}
}
