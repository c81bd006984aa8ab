package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/authcore/internal/password"
	"go.pilab.hu/authcore/user"
)

// userDocument is the stored shape of a user account.
type userDocument struct {
	UserID          string   `bson:"_id"`
	PasswordHash    string   `bson:"password_hash"`
	Roles           []string `bson:"roles,omitempty"`
	TokenTTLSeconds *int64   `bson:"token_ttl_seconds,omitempty"`
}

func (d *userDocument) info() *user.Info {
	info := &user.Info{
		UserID: d.UserID,
		Roles:  d.Roles,
	}
	if d.TokenTTLSeconds != nil {
		ttl := time.Duration(*d.TokenTTLSeconds) * time.Second
		info.TokenTTL = &ttl
	}
	return info
}

// UserRepository implements user.Registry and user.IdentityStore on the
// auth_users collection.
type UserRepository struct {
	users  *mongo.Collection
	hasher *password.Hasher
}

// NewUserRepository creates the repository.
func NewUserRepository(c *Client, hasher *password.Hasher) *UserRepository {
	return &UserRepository{
		users:  c.db.Collection(usersCollection),
		hasher: hasher,
	}
}

// UserInfo implements user.Registry.
func (r *UserRepository) UserInfo(ctx context.Context, userID string) (*user.Info, error) {
	doc, err := r.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.info(), nil
}

// Verify implements user.IdentityStore.
func (r *UserRepository) Verify(ctx context.Context, userID, pass string) (*user.Info, error) {
	doc, err := r.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.hasher.Verify(pass, doc.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, user.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password of %s: %w", userID, err)
	}
	return doc.info(), nil
}

// Save upserts a user account with the given password and roles.
func (r *UserRepository) Save(ctx context.Context, userID, pass string, roles []string, tokenTTL *time.Duration) error {
	hash, err := r.hasher.Hash(pass)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	doc := userDocument{
		UserID:       userID,
		PasswordHash: hash,
		Roles:        roles,
	}
	if tokenTTL != nil {
		seconds := int64(*tokenTTL / time.Second)
		doc.TokenTTLSeconds = &seconds
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.users.ReplaceOne(ctx, bson.M{"_id": userID}, doc, opts); err != nil {
		return fmt.Errorf("save user %s: %w", userID, err)
	}
	return nil
}

// Delete removes a user account.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.users.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (r *UserRepository) find(ctx context.Context, userID string) (*userDocument, error) {
	var doc userDocument
	err := r.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	return &doc, nil
}
