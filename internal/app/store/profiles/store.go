// internal/app/store/profiles/store.go
package profiles

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/bisontutor/internal/app/system/provider"
	"github.com/dalemusser/bisontutor/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store keeps the profiles and tutor_profiles rows in MongoDB, keyed by the
// auth provider's user id. It satisfies provider.Rows so it can stand in
// for the provider's own row store.
type Store struct {
	profiles *mongo.Collection
	tutors   *mongo.Collection
}

var _ provider.Rows = (*Store)(nil)

// New creates a new profiles Store.
func New(db *mongo.Database) *Store {
	return &Store{
		profiles: db.Collection("profiles"),
		tutors:   db.Collection("tutor_profiles"),
	}
}

// GetProfile returns the profiles row for id, or nil when absent.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := s.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProfile inserts a profiles row.
func (s *Store) InsertProfile(ctx context.Context, p models.Profile) error {
	_, err := s.profiles.InsertOne(ctx, p)
	return mapDup(err, "profiles")
}

// UpdateProfile sets the columns named by upd. A missing row is left
// missing.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range upd.Fields() {
		if v == nil {
			unset[k] = ""
			continue
		}
		set[k] = v
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}
	_, err := s.profiles.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

// GetTutorProfile returns the tutor_profiles row for id, or nil when absent.
func (s *Store) GetTutorProfile(ctx context.Context, id string) (*models.TutorProfile, error) {
	var tp models.TutorProfile
	err := s.tutors.FindOne(ctx, bson.M{"_id": id}).Decode(&tp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

// InsertTutorProfile inserts a tutor_profiles row.
func (s *Store) InsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	_, err := s.tutors.InsertOne(ctx, normalizeTutor(tp))
	return mapDup(err, "tutor_profiles")
}

// UpsertTutorProfile replaces the tutor_profiles row, creating it if needed.
func (s *Store) UpsertTutorProfile(ctx context.Context, tp models.TutorProfile) error {
	_, err := s.tutors.ReplaceOne(ctx,
		bson.M{"_id": tp.ID},
		normalizeTutor(tp),
		options.Replace().SetUpsert(true))
	return err
}

// normalizeTutor stores empty lists rather than null.
func normalizeTutor(tp models.TutorProfile) models.TutorProfile {
	if tp.Subjects == nil {
		tp.Subjects = []string{}
	}
	if tp.Availability == nil {
		tp.Availability = []string{}
	}
	return tp
}

// mapDup reports duplicate keys the way the provider's row store does, so
// callers can treat both backends alike.
func mapDup(err error, coll string) error {
	if err == nil || !wafflemongo.IsDup(err) {
		return err
	}
	return &provider.Error{
		Status:  http.StatusConflict,
		Code:    provider.CodeUniqueViolation,
		Message: "duplicate key value violates unique constraint \"" + coll + "_pkey\"",
	}
}
