// Package authsession keeps one browser's view of who is signed in, with
// which roles, and which role is active. It follows the auth provider's
// change notifications, publishes a minimal account as soon as a session
// exists, and fills in the profile in the background.
package authsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/app/system/sessionstore"
	"github.com/dalemusser/bisontutor/internal/app/system/timeouts"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"go.uber.org/zap"
)

// Config holds the settings of a Manager. Zero durations fall back to the
// timeouts package; negative trigger delays disable the wait.
type Config struct {
	// Domain is the required email domain, without the "@".
	Domain string
	// BaseURL is the origin used for emailed links.
	BaseURL string

	BootstrapTimeout    time.Duration
	SignOutTimeout      time.Duration
	ProfileTriggerDelay time.Duration
	TutorTriggerDelay   time.Duration
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(m *Manager) {
		if a != nil {
			m.audit = a
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *Manager) {
		if mt != nil {
			m.metrics = mt
		}
	}
}

// Manager is the single writer of one browser's session and account state.
// Start mounts it; Close tears it down, after which no callback changes
// state.
type Manager struct {
	auth   provider.Auth
	rows   provider.Rows
	tokens *sessionstore.Store
	cfg    Config

	log     *zap.Logger
	audit   Auditor
	metrics Metrics

	mu       sync.Mutex
	alive    bool
	started  bool
	status   Status
	user     *models.Account
	session  *models.Session
	hydrated bool
	// gen changes whenever the signed-in account changes; hydration
	// results from an older generation are dropped.
	gen       uint64
	bootTimer *time.Timer
	changed   chan struct{}
	settled   chan struct{}
	settle    sync.Once

	sub     *provider.Subscription
	initial chan initialResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type initialResult struct {
	session *models.Session
	err     error
}

// New creates a Manager. tokens receives the bearer of the current
// session; it may be nil.
func New(auth provider.Auth, rows provider.Rows, tokens *sessionstore.Store, cfg Config, opts ...Option) *Manager {
	if cfg.BootstrapTimeout <= 0 {
		cfg.BootstrapTimeout = timeouts.Bootstrap()
	}
	if cfg.SignOutTimeout <= 0 {
		cfg.SignOutTimeout = timeouts.SignOut()
	}
	if tokens == nil {
		tokens = sessionstore.New()
	}
	m := &Manager{
		auth:    auth,
		rows:    rows,
		tokens:  tokens,
		cfg:     cfg,
		log:     zap.NewNop(),
		audit:   nopAuditor{},
		metrics: nopMetrics{},
		status:  StatusUnknown,
		changed: make(chan struct{}),
		settled: make(chan struct{}),
		initial: make(chan initialResult, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tokens returns the session store holding the current bearer.
func (m *Manager) Tokens() *sessionstore.Store {
	return m.tokens
}

// Start subscribes to auth-state changes and begins the initial session
// check. The manager leaves Loading when the check answers, when a change
// notification arrives, or when the bootstrap timeout fires, whichever
// comes first. Start is a no-op after the first call.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.alive = true
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.sub = m.auth.Subscribe()
	m.setStatusLocked(StatusLoading)
	m.bootTimer = time.AfterFunc(m.cfg.BootstrapTimeout, m.bootstrapExpired)
	m.notifyLocked()
	m.mu.Unlock()

	m.wg.Add(2)
	go m.eventLoop()
	go m.initialCheck()
}

// Close unsubscribes and stops background work. State is frozen from the
// moment Close is called. Safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.alive = false
	m.clearTimerLocked()
	cancel := m.cancel
	sub := m.sub
	m.mu.Unlock()

	cancel()
	sub.Unsubscribe()
	m.wg.Wait()
}

// State returns a snapshot of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	return State{
		Status:          m.status,
		User:            m.user.Clone(),
		Session:         m.session.Clone(),
		ProfileHydrated: m.hydrated,
	}
}

// Watch returns a channel that is closed at the next state change.
func (m *Manager) Watch() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changed
}

// WaitSettled blocks until the manager has left Loading or ctx is done.
func (m *Manager) WaitSettled(ctx context.Context) error {
	select {
	case <-m.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitUntil blocks until cond holds for the current state or ctx is done,
// and returns the last state seen.
func (m *Manager) WaitUntil(ctx context.Context, cond func(State) bool) (State, error) {
	for {
		m.mu.Lock()
		st := m.stateLocked()
		ch := m.changed
		m.mu.Unlock()

		if cond(st) {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func (m *Manager) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	m.metrics.StateChanged(string(s))
	if s == StatusAnonymous || s == StatusAuthenticated {
		m.settle.Do(func() { close(m.settled) })
	}
}

// clearTimerLocked stops the bootstrap timer. Clearing a fired or already
// cleared timer is a no-op.
func (m *Manager) clearTimerLocked() {
	if m.bootTimer != nil {
		m.bootTimer.Stop()
		m.bootTimer = nil
	}
}

func (m *Manager) bootstrapExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootTimer = nil
	if !m.alive || m.status != StatusLoading {
		return
	}
	m.log.Warn("initial session check timed out",
		zap.Duration("timeout", m.cfg.BootstrapTimeout))
	m.setStatusLocked(StatusAnonymous)
	m.notifyLocked()
}

func (m *Manager) initialCheck() {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.BootstrapTimeout)
	defer cancel()

	sess, err := m.auth.GetSession(ctx)
	select {
	case m.initial <- initialResult{session: sess, err: err}:
	default:
	}
}

// eventLoop is the only path that moves the manager into or out of
// Authenticated, apart from the local clear done by Logout.
func (m *Manager) eventLoop() {
	defer m.wg.Done()

	events := m.sub.Events()
	initial := m.initial
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.sub.Done():
			return
		case ev := <-events:
			m.safeHandle(ev)
		case res := <-initial:
			initial = nil
			m.handleInitial(res)
		}
	}
}

// handleInitial applies the answer of the initial session check, unless a
// change notification already settled the state.
func (m *Manager) handleInitial(res initialResult) {
	m.mu.Lock()
	loading := m.alive && m.status == StatusLoading
	m.mu.Unlock()
	if !loading {
		return
	}
	if res.err != nil {
		m.log.Warn("initial session check failed", zap.Error(res.err))
		m.degrade()
		return
	}
	m.safeHandle(provider.Event{Kind: provider.EventInitialSession, Session: res.session})
}

// safeHandle applies ev and degrades to Anonymous if handling panics, so
// the manager can never stay in Loading.
func (m *Manager) safeHandle(ev provider.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("auth event handler panicked",
				zap.String("event", string(ev.Kind)),
				zap.Any("panic", r))
			m.degrade()
		}
	}()
	m.handle(ev)
}

func (m *Manager) degrade() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive || m.status != StatusLoading {
		return
	}
	m.clearTimerLocked()
	m.setStatusLocked(StatusAnonymous)
	m.notifyLocked()
}

func (m *Manager) handle(ev provider.Event) {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.clearTimerLocked()

	if ev.Session == nil {
		m.clearLocked()
		m.mu.Unlock()
		return
	}

	sess := ev.Session.Clone()
	m.session = sess
	m.tokens.Set(sess)

	var hydrateGen uint64
	sameAccount := m.user != nil && m.user.ID == sess.User.ID
	switch {
	case !sameAccount:
		m.gen++
		m.user = models.MinimalAccount(sess.User.ID, sess.User.Email)
		m.hydrated = false
		hydrateGen = m.gen
	case ev.Kind != provider.EventTokenRefreshed:
		// same account signed in again or updated: refine in place
		m.user.Email = sess.User.Email
		hydrateGen = m.gen
	}
	m.setStatusLocked(StatusAuthenticated)
	m.notifyLocked()
	userID := sess.User.ID
	m.mu.Unlock()

	if hydrateGen != 0 {
		m.goHydrate(hydrateGen, userID)
	}
}

// clearLocked drops the session and account.
func (m *Manager) clearLocked() {
	m.gen++
	m.user = nil
	m.session = nil
	m.hydrated = false
	m.tokens.Clear()
	m.setStatusLocked(StatusAnonymous)
	m.notifyLocked()
}

func (m *Manager) goHydrate(gen uint64, userID string) {
	m.mu.Lock()
	if !m.alive {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(m.ctx, timeouts.Short())
		defer cancel()
		m.hydrate(ctx, gen, userID)
	}()
}

// hydrate replaces the account with the persisted profile. Failures and
// missing rows leave the current account untouched.
func (m *Manager) hydrate(ctx context.Context, gen uint64, userID string) bool {
	p, err := m.rows.GetProfile(ctx, userID)
	if err != nil {
		m.log.Debug("profile hydration failed; keeping current account",
			zap.String("user_id", userID), zap.Error(err))
		m.metrics.Hydration("error")
		return false
	}
	if p == nil {
		m.log.Debug("no profile row; keeping current account", zap.String("user_id", userID))
		m.metrics.Hydration("missing")
		return false
	}

	roles, active := p.Reconcile()
	if len(roles) > 0 && !models.ContainsRole(roles, active) {
		active = roles[0]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive || m.gen != gen || m.user == nil || m.user.ID != userID {
		m.metrics.Hydration("stale")
		return false
	}
	m.user = &models.Account{
		ID:         userID,
		Email:      m.user.Email,
		Name:       p.Name,
		Phone:      p.Phone,
		Roles:      roles,
		ActiveRole: active,
		LegacyRole: active,
	}
	m.hydrated = true
	m.notifyLocked()
	m.metrics.Hydration("ok")
	return true
}

// RefreshProfile re-reads the profile of the signed-in account and waits
// for the result. Read failures are swallowed.
func (m *Manager) RefreshProfile(ctx context.Context) {
	m.mu.Lock()
	if !m.alive || m.user == nil {
		m.mu.Unlock()
		return
	}
	gen, userID := m.gen, m.user.ID
	m.mu.Unlock()

	m.hydrate(ctx, gen, userID)
}

// current returns the loaded account and its generation.
func (m *Manager) current() (*models.Account, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive {
		return nil, 0, ErrClosed
	}
	if m.user == nil {
		return nil, 0, ErrNotAuthenticated
	}
	return m.user.Clone(), m.gen, nil
}

func (m *Manager) sessionSnapshot() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Clone()
}

func (m *Manager) checkAlive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.alive {
		return ErrClosed
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) String() string {
	st := m.State()
	if st.User == nil {
		return fmt.Sprintf("authsession(%s)", st.Status)
	}
	return fmt.Sprintf("authsession(%s %s)", st.Status, st.User.ID)
}
