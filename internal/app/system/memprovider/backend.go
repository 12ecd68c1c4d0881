// Package memprovider is an in-process auth provider and row store. It
// backs local development (auth_backend=memory) and the tests of every
// package that talks to the provider.
package memprovider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/bisontutor/internal/app/system/mailer"
	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Op names a provider call for fault injection and call counting.
type Op string

const (
	OpGetSession         Op = "get_session"
	OpSignIn             Op = "sign_in"
	OpSignUp             Op = "sign_up"
	OpSignOut            Op = "sign_out"
	OpResetPassword      Op = "reset_password"
	OpUpdatePassword     Op = "update_password"
	OpVerifyOTP          Op = "verify_otp"
	OpGetUser            Op = "get_user"
	OpSetSession         Op = "set_session"
	OpGetProfile         Op = "get_profile"
	OpInsertProfile      Op = "insert_profile"
	OpUpdateProfile      Op = "update_profile"
	OpGetTutorProfile    Op = "get_tutor_profile"
	OpInsertTutorProfile Op = "insert_tutor_profile"
	OpUpsertTutorProfile Op = "upsert_tutor_profile"
)

// Fault makes an Op slow or failing. Delay is honored before Err is
// returned and is cut short by context cancellation. Times limits the
// fault to the next n calls; 0 means every call.
type Fault struct {
	Err   error
	Delay time.Duration
	Times int
}

// Options configures a Backend.
type Options struct {
	// AutoConfirm confirms new accounts at sign-up and returns a session,
	// as a provider with email confirmation disabled does.
	AutoConfirm bool
	// ProfileTrigger inserts the profiles row at sign-up from the sign-up
	// metadata, as a database trigger would.
	ProfileTrigger bool
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// SessionTTL defaults to one hour.
	SessionTTL time.Duration
	SiteName   string
	Mailer     mailer.Sender
	Logger     *zap.Logger
	Now        func() time.Time
}

type user struct {
	id          string
	email       string
	hash        []byte
	confirmedAt *time.Time
	metadata    map[string]any
}

func (u *user) identity() models.Identity {
	id := models.Identity{ID: u.id, Email: u.email}
	if u.confirmedAt != nil {
		t := *u.confirmedAt
		id.EmailConfirmedAt = &t
	}
	if u.metadata != nil {
		id.Metadata = make(map[string]any, len(u.metadata))
		for k, v := range u.metadata {
			id.Metadata[k] = v
		}
	}
	return id
}

type tokenKind string

const (
	tokenSignup tokenKind = "signup"
)

type otpToken struct {
	userID string
	kind   tokenKind
}

type sessionRecord struct {
	userID    string
	access    string
	refresh   string
	expiresAt time.Time
	recovery  bool
}

// Backend is the shared state of the in-memory provider: accounts, issued
// sessions and the profiles/tutor_profiles rows. It implements
// provider.Rows; NewClient returns per-browser provider.Auth views.
type Backend struct {
	opts Options
	log  *zap.Logger

	mu            sync.Mutex
	usersByEmail  map[string]*user
	usersByID     map[string]*user
	tokens        map[string]otpToken
	byAccess      map[string]*sessionRecord
	byRefresh     map[string]*sessionRecord
	profiles      map[string]models.Profile
	tutorProfiles map[string]models.TutorProfile
	faults        map[Op]Fault
	calls         map[Op]int
}

var _ provider.Rows = (*Backend)(nil)

// New creates an empty Backend.
func New(opts Options) *Backend {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Mailer == nil {
		opts.Mailer = mailer.NewOutbox(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SiteName == "" {
		opts.SiteName = "Bison Tutor"
	}
	return &Backend{
		opts:          opts,
		log:           opts.Logger,
		usersByEmail:  make(map[string]*user),
		usersByID:     make(map[string]*user),
		tokens:        make(map[string]otpToken),
		byAccess:      make(map[string]*sessionRecord),
		byRefresh:     make(map[string]*sessionRecord),
		profiles:      make(map[string]models.Profile),
		tutorProfiles: make(map[string]models.TutorProfile),
		faults:        make(map[Op]Fault),
		calls:         make(map[Op]int),
	}
}

// InjectFault installs f for op, replacing any previous fault.
func (b *Backend) InjectFault(op Op, f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults[op] = f
}

// ClearFaults removes all injected faults.
func (b *Backend) ClearFaults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.faults = make(map[Op]Fault)
}

// Calls reports how many times op was invoked.
func (b *Backend) Calls(op Op) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// hit counts a call and applies its fault, if any.
func (b *Backend) hit(ctx context.Context, op Op) error {
	b.mu.Lock()
	b.calls[op]++
	f, ok := b.faults[op]
	if ok && f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(b.faults, op)
		} else {
			b.faults[op] = f
		}
	}
	b.mu.Unlock()

	if !ok {
		return ctx.Err()
	}
	if f.Delay > 0 {
		t := time.NewTimer(f.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return f.Err
}

// CreateUser registers a confirmed account directly. It is a seeding
// helper for development and tests.
func (b *Backend) CreateUser(email, password string, metadata map[string]any) (models.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.opts.BcryptCost)
	if err != nil {
		return models.Identity{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := normalizeEmail(email)
	if _, exists := b.usersByEmail[key]; exists {
		return models.Identity{}, errUserExists()
	}
	now := b.opts.Now().UTC()
	u := &user{
		id:          uuid.NewString(),
		email:       key,
		hash:        hash,
		confirmedAt: &now,
		metadata:    metadata,
	}
	b.usersByEmail[key] = u
	b.usersByID[u.id] = u
	return u.identity(), nil
}

// PutProfile stores a profiles row as-is, bypassing faults and counters.
func (b *Backend) PutProfile(p models.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p.Roles = cloneRoles(p.Roles)
	b.profiles[p.ID] = p
}

// cloneRoles copies roles, keeping an empty list distinct from a missing
// one the way a JSON or BSON round trip does.
func cloneRoles(roles []models.Role) []models.Role {
	if roles == nil {
		return nil
	}
	return append([]models.Role{}, roles...)
}

// PutTutorProfile stores a tutor_profiles row as-is.
func (b *Backend) PutTutorProfile(tp models.TutorProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tutorProfiles[tp.ID] = tp
}

// Profile returns the stored profiles row without counting a call.
func (b *Backend) Profile(id string) (models.Profile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	return p, ok
}

// TutorProfile returns the stored tutor_profiles row without counting a call.
func (b *Backend) TutorProfile(id string) (models.TutorProfile, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tp, ok := b.tutorProfiles[id]
	return tp, ok
}

// --- provider.Rows ---

// GetProfile returns the profiles row for id, or nil when absent.
func (b *Backend) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	if err := b.hit(ctx, OpGetProfile); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil, nil
	}
	p.Roles = cloneRoles(p.Roles)
	return &p, nil
}

// InsertProfile inserts a profiles row; a duplicate id is a unique violation.
func (b *Backend) InsertProfile(ctx context.Context, p models.Profile) error {
	if err := b.hit(ctx, OpInsertProfile); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.profiles[p.ID]; exists {
		return errDuplicate("profiles_pkey")
	}
	p.Roles = cloneRoles(p.Roles)
	b.profiles[p.ID] = p
	return nil
}

// UpdateProfile applies upd to the row. Updating a missing row changes
// nothing and is not an error.
func (b *Backend) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	if err := b.hit(ctx, OpUpdateProfile); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[id]
	if !ok {
		return nil
	}
	if upd.Roles != nil {
		p.Roles = append([]models.Role{}, upd.Roles...)
	}
	if upd.ActiveRole != nil {
		p.ActiveRole = *upd.ActiveRole
	}
	if upd.Name != nil {
		n := *upd.Name
		p.Name = &n
	}
	if upd.Phone != nil {
		if *upd.Phone == "" {
			p.Phone = nil
		} else {
			ph := *upd.Phone
			p.Phone = &ph
		}
	}
	b.profiles[id] = p
	return nil
}

// GetTutorProfile returns the tutor_profiles row for id, or nil when absent.
func (b *Backend) GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error) {
	if err := b.hit(ctx, OpGetTutorProfile); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	tp, ok := b.tutorProfiles[id]
	if !ok {
		return nil, nil
	}
	return &tp, nil
}

// InsertTutorProfile inserts a tutor_profiles row.
func (b *Backend) InsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	if err := b.hit(ctx, OpInsertTutorProfile); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tutorProfiles[tp.ID]; exists {
		return errDuplicate("tutor_profiles_pkey")
	}
	b.tutorProfiles[tp.ID] = tp
	return nil
}

// UpsertTutorProfile inserts or replaces a tutor_profiles row.
func (b *Backend) UpsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	if err := b.hit(ctx, OpUpsertTutorProfile); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tutorProfiles[tp.ID] = tp
	return nil
}

// --- session bookkeeping (called by Client) ---

func (b *Backend) issueLocked(u *user, recovery bool) *models.Session {
	rec := &sessionRecord{
		userID:    u.id,
		access:    uuid.NewString(),
		refresh:   uuid.NewString(),
		expiresAt: b.opts.Now().Add(b.opts.SessionTTL).UTC(),
		recovery:  recovery,
	}
	b.byAccess[rec.access] = rec
	b.byRefresh[rec.refresh] = rec
	return b.sessionLocked(rec, u)
}

func (b *Backend) sessionLocked(rec *sessionRecord, u *user) *models.Session {
	return &models.Session{
		AccessToken:  rec.access,
		RefreshToken: rec.refresh,
		TokenType:    "bearer",
		ExpiresAt:    rec.expiresAt,
		User:         u.identity(),
		Recovery:     rec.recovery,
	}
}

func (b *Backend) revokeLocked(access string) {
	rec, ok := b.byAccess[access]
	if !ok {
		return
	}
	delete(b.byAccess, rec.access)
	delete(b.byRefresh, rec.refresh)
}

// refreshLocked exchanges a refresh token for a new session.
func (b *Backend) refreshLocked(refresh string) (*models.Session, error) {
	rec, ok := b.byRefresh[refresh]
	if !ok {
		return nil, &provider.Error{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	u, ok := b.usersByID[rec.userID]
	if !ok {
		return nil, errUserNotFound()
	}
	b.revokeLocked(rec.access)
	return b.issueLocked(u, rec.recovery), nil
}

func (b *Backend) sendLink(ctx context.Context, to string, e mailer.Email) {
	e.To = to
	if err := b.opts.Mailer.Send(ctx, e); err != nil {
		b.log.Warn("memprovider: send email failed", zap.String("to", to), zap.Error(err))
	}
}

func withQuery(base string, params url.Values) string {
	if base == "" {
		return "?" + params.Encode()
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func errUserExists() error {
	return &provider.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
}

func errUserNotFound() error {
	return &provider.Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
}

func errDuplicate(constraint string) error {
	return &provider.Error{
		Status:  http.StatusConflict,
		Code:    provider.CodeUniqueViolation,
		Message: `duplicate key value violates unique constraint "` + constraint + `"`,
	}
}
