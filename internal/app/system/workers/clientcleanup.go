// internal/app/system/workers/clientcleanup.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleEvictor closes the session managers of clients idle beyond a
// threshold.
type IdleEvictor interface {
	EvictIdle(idle time.Duration) int
}

// Sweeper drops stale entries from an in-memory table.
type Sweeper interface {
	Sweep() int
}

// ClientCleanup is a background worker that evicts idle browser clients
// and sweeps the rate limiter.
type ClientCleanup struct {
	clients       IdleEvictor
	sweepers      []Sweeper
	log           *zap.Logger
	interval      time.Duration
	idleThreshold time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// NewClientCleanup creates a new cleanup worker.
//
// Parameters:
//   - clients: the client registry
//   - logger: zap logger for logging
//   - interval: how often to run cleanup (e.g., 1 minute)
//   - idleThreshold: how long a client must be unused before its manager is closed (e.g., 30 minutes)
//   - sweepers: extra tables swept on the same tick
func NewClientCleanup(clients IdleEvictor, logger *zap.Logger, interval, idleThreshold time.Duration, sweepers ...Sweeper) *ClientCleanup {
	return &ClientCleanup{
		clients:       clients,
		sweepers:      sweepers,
		log:           logger,
		interval:      interval,
		idleThreshold: idleThreshold,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the background cleanup loop.
func (w *ClientCleanup) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("client cleanup worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle_threshold", w.idleThreshold))
}

// Stop signals the worker to stop and waits for it to finish. Safe to
// call more than once.
func (w *ClientCleanup) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("client cleanup worker stopped")
	})
}

func (w *ClientCleanup) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *ClientCleanup) cleanup() {
	if n := w.clients.EvictIdle(w.idleThreshold); n > 0 {
		w.log.Info("evicted idle clients", zap.Int("count", n))
	}
	for _, s := range w.sweepers {
		if n := s.Sweep(); n > 0 {
			w.log.Debug("swept stale entries", zap.Int("count", n))
		}
	}
}
