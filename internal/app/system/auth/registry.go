// internal/app/system/auth/registry.go
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/authsession"
	"go.uber.org/zap"
)

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("client registry is closed")

// Factory builds the Manager of one browser client, with its own
// provider client and session store. The registry starts it.
type Factory func(clientID string) (*authsession.Manager, error)

// ClientObserver is told when managers are created and closed.
type ClientObserver interface {
	ClientOpened()
	ClientClosed(evicted bool)
}

type client struct {
	m        *authsession.Manager
	lastUsed time.Time
}

// Registry maps client ids to their session managers.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*client
	factory Factory
	obs     ClientObserver
	log     *zap.Logger
	now     func() time.Time
	closed  bool
}

// NewRegistry creates an empty registry. obs may be nil.
func NewRegistry(factory Factory, obs ClientObserver, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		clients: make(map[string]*client),
		factory: factory,
		obs:     obs,
		log:     logger,
		now:     time.Now,
	}
}

// Get returns the manager of id, creating and starting one on first use.
// Every call marks the client as used.
func (reg *Registry) Get(ctx context.Context, id string) (*authsession.Manager, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.closed {
		return nil, ErrRegistryClosed
	}
	if c, ok := reg.clients[id]; ok {
		c.lastUsed = reg.now()
		return c.m, nil
	}

	m, err := reg.factory(id)
	if err != nil {
		return nil, err
	}
	m.Start(ctx)
	reg.clients[id] = &client{m: m, lastUsed: reg.now()}
	if reg.obs != nil {
		reg.obs.ClientOpened()
	}
	reg.log.Debug("client session started", zap.String("client_id", id))
	return m, nil
}

// Lookup returns the manager of id without creating one.
func (reg *Registry) Lookup(id string) (*authsession.Manager, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	c, ok := reg.clients[id]
	if !ok {
		return nil, false
	}
	return c.m, true
}

// Len returns the number of live clients.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.clients)
}

// Remove closes and forgets the manager of id.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	c, ok := reg.clients[id]
	delete(reg.clients, id)
	reg.mu.Unlock()

	if ok {
		c.m.Close()
		if reg.obs != nil {
			reg.obs.ClientClosed(false)
		}
	}
}

// EvictIdle closes managers not used for longer than idle and returns
// how many were closed. Managers are closed outside the lock.
func (reg *Registry) EvictIdle(idle time.Duration) int {
	cutoff := reg.now().Add(-idle)

	reg.mu.Lock()
	var stale []*authsession.Manager
	for id, c := range reg.clients {
		if c.lastUsed.Before(cutoff) {
			stale = append(stale, c.m)
			delete(reg.clients, id)
		}
	}
	reg.mu.Unlock()

	for _, m := range stale {
		m.Close()
		if reg.obs != nil {
			reg.obs.ClientClosed(true)
		}
	}
	return len(stale)
}

// Close closes every manager. Later Get calls fail.
func (reg *Registry) Close() {
	reg.mu.Lock()
	reg.closed = true
	all := reg.clients
	reg.clients = make(map[string]*client)
	reg.mu.Unlock()

	for _, c := range all {
		c.m.Close()
		if reg.obs != nil {
			reg.obs.ClientClosed(false)
		}
	}
	reg.log.Info("client registry closed", zap.Int("clients", len(all)))
}
