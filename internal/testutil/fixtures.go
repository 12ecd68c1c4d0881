package testutil

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/bisontutor/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts profile rows directly, bypassing the stores.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// CreateProfile inserts a profiles row with the given roles. The first role
// becomes the active role.
func (f *Fixtures) CreateProfile(ctx context.Context, name string, roles ...models.Role) models.Profile {
	f.t.Helper()

	p := models.Profile{
		ID:    uuid.NewString(),
		Roles: roles,
		Name:  &name,
	}
	if len(roles) > 0 {
		p.ActiveRole = roles[0]
	}
	if _, err := f.db.Collection("profiles").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// CreateLegacyProfile inserts a row that only has the single-role column.
func (f *Fixtures) CreateLegacyProfile(ctx context.Context, name string, role models.Role) models.Profile {
	f.t.Helper()

	p := models.Profile{
		ID:   uuid.NewString(),
		Role: role,
		Name: &name,
	}
	if _, err := f.db.Collection("profiles").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create legacy profile: %v", err)
	}
	return p
}
