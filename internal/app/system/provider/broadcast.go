package provider

import "sync"

// Subscription delivers auth-state changes until Unsubscribe is called.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
	b    *Broadcaster
	id   uint64
}

// Events yields changes in publish order. It is never closed; select on
// Done to notice Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Done is closed by Unsubscribe.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.b != nil {
			s.b.remove(s.id)
		}
	})
}

// Broadcaster fans events out to subscribers in publish order.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
	next uint64
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscriber.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	s := &Subscription{
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
		b:    b,
		id:   b.next,
	}
	b.subs[s.id] = s
	return s
}

// Publish delivers ev to every subscriber. It blocks while a subscriber's
// buffer is full, unless that subscriber unsubscribes. Callers must not
// hold locks the subscriber needs.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.done:
		}
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
