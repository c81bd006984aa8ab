// Package mongodb persists user accounts and API access keys in MongoDB.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection      = "auth_users"
	accessKeysCollection = "auth_access_keys"
)

// Client wraps the MongoDB connection and the database holding the
// authentication collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect connects to MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Info().Str("db", dbName).Msg("connected to mongodb")
	return &Client{client: client, db: client.Database(dbName)}, nil
}

// Disconnect closes the connection.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
