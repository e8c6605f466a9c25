package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"usermgmt/internal/models"
)

const mongoCollection = "password_reset_token"

// MongoStore persists records in the password_reset_token collection. The
// used:false filter on the finalize update plays the same role as the
// Postgres used = FALSE guard.
type MongoStore struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoStore(db *mongo.Database, ttl time.Duration) *MongoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MongoStore{collection: db.Collection(mongoCollection), ttl: ttl}
}

// EnsureIndexes creates the unique index on token. Call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: create token index: %v", ErrPersistence, err)
	}
	return nil
}

func (s *MongoStore) Issue(ctx context.Context, user models.TargetUser) (*models.ResetTokenRecord, error) {
	now := time.Now().UTC()
	rec := &models.ResetTokenRecord{
		Token:          uuid.NewString(),
		Email:          user.Email,
		GeneratedAt:    now,
		ExpiresAt:      now.Add(s.ttl),
		Used:           false,
		ExternalUserID: user.ExternalUserID,
	}

	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: insert reset token: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (s *MongoStore) Validate(ctx context.Context, token string) (Validation, error) {
	var rec models.ResetTokenRecord
	err := s.collection.FindOne(ctx, bson.M{"token": token, "used": false}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return Validation{State: StateNotFound}, nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("%w: lookup reset token: %v", ErrPersistence, err)
	}

	if rec.Expired(time.Now().UTC()) {
		return Validation{State: StateExpired, Record: &rec}, nil
	}
	return Validation{State: StateValid, Record: &rec}, nil
}

func (s *MongoStore) Finalize(ctx context.Context, token string) (bool, error) {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"token": token, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_on": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("%w: finalize reset token: %v", ErrPersistence, err)
	}
	return res.ModifiedCount == 1, nil
}
