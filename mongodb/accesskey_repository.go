package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.pilab.hu/authcore/token"
)

// accessKeyDocument is the stored shape of an issued API access key. Only
// durable keys are stored; temporary keys expire by age and are never
// persisted.
type accessKeyDocument struct {
	ID       string    `bson:"_id"`
	UserID   string    `bson:"user_id"`
	Methods  []string  `bson:"methods,omitempty"`
	Paths    []string  `bson:"paths,omitempty"`
	IssuedAt time.Time `bson:"issued_at"`
}

// AccessKeyRepository implements accesskey.KeyStore on the auth_access_keys
// collection. Deleting a key revokes it.
type AccessKeyRepository struct {
	keys *mongo.Collection
}

// NewAccessKeyRepository creates the repository and ensures the user index.
func NewAccessKeyRepository(ctx context.Context, c *Client) (*AccessKeyRepository, error) {
	keys := c.db.Collection(accessKeysCollection)
	_, err := keys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create access key index: %w", err)
	}
	return &AccessKeyRepository{keys: keys}, nil
}

// KeyExists implements accesskey.KeyStore.
func (r *AccessKeyRepository) KeyExists(ctx context.Context, id string) (bool, error) {
	err := r.keys.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up access key %s: %w", id, err)
	}
	return true, nil
}

// Save records an issued key so it can be revoked later.
func (r *AccessKeyRepository) Save(ctx context.Context, key *token.APIAccessKey) error {
	if key.Temporary {
		return nil
	}
	doc := accessKeyDocument{
		ID:       key.ID,
		UserID:   key.UserID,
		Methods:  key.Methods,
		Paths:    key.Paths,
		IssuedAt: key.IssuedAt.Time,
	}
	if _, err := r.keys.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("save access key %s: %w", key.ID, err)
	}
	return nil
}

// Delete revokes a key by removing it.
func (r *AccessKeyRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.keys.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete access key %s: %w", id, err)
	}
	return nil
}

// DeleteByUser revokes all keys issued to a user, for offboarding.
func (r *AccessKeyRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.keys.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("delete access keys of %s: %w", userID, err)
	}
	return result.DeletedCount, nil
}
