// Package timeouts provides the ceilings used around provider and API calls.
//
// Values can be changed at startup with Configure. Guidelines:
//   - Ping: health checks
//   - Short: single-row reads and writes against the profile store
//   - Medium: API calls, uploads, multi-step role changes
//   - Bootstrap: the longest the initial session check may keep a client
//     in the loading state
//   - SignOut: the best-effort remote sign-out after local state is cleared
//   - TriggerDelay: the wait before checking that backend triggers created
//     the profile rows of a new account
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults, used until Configure is called.
const (
	DefaultPing         = 2 * time.Second
	DefaultShort        = 5 * time.Second
	DefaultMedium       = 15 * time.Second
	DefaultBootstrap    = 5 * time.Second
	DefaultSignOut      = 2 * time.Second
	DefaultTriggerDelay = 500 * time.Millisecond
)

var mu sync.RWMutex

var (
	ping         = DefaultPing
	short        = DefaultShort
	medium       = DefaultMedium
	bootstrap    = DefaultBootstrap
	signOut      = DefaultSignOut
	triggerDelay = DefaultTriggerDelay
)

func get(v *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

func Ping() time.Duration         { return get(&ping) }
func Short() time.Duration        { return get(&short) }
func Medium() time.Duration       { return get(&medium) }
func Bootstrap() time.Duration    { return get(&bootstrap) }
func SignOut() time.Duration      { return get(&signOut) }
func TriggerDelay() time.Duration { return get(&triggerDelay) }

// Config holds timeout overrides. Zero values keep the current setting.
type Config struct {
	Ping         time.Duration
	Short        time.Duration
	Medium       time.Duration
	Bootstrap    time.Duration
	SignOut      time.Duration
	TriggerDelay time.Duration
}

// Configure applies the non-zero values of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&ping, cfg.Ping)
	set(&short, cfg.Short)
	set(&medium, cfg.Medium)
	set(&bootstrap, cfg.Bootstrap)
	set(&signOut, cfg.SignOut)
	set(&triggerDelay, cfg.TriggerDelay)
}

// Reset restores the defaults. Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	bootstrap = DefaultBootstrap
	signOut = DefaultSignOut
	triggerDelay = DefaultTriggerDelay
}

// Current returns the active settings, for startup logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:         ping,
		Short:        short,
		Medium:       medium,
		Bootstrap:    bootstrap,
		SignOut:      signOut,
		TriggerDelay: triggerDelay,
	}
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was what ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), log, "add role")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
