// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db holds the "users", "chats" and "user_chats" collections
	db *mongo.Database
}

// New connects to MongoDB and returns a Client using the named database.
// Live queries rely on change streams, so the deployment must be a replica set.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second) // Max time to connect

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := Ping(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Ping verifies the primary is reachable within five seconds.
func Ping(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return nil
}

// Ping checks the connection; used by the readiness check.
func (c *Client) Ping(ctx context.Context) error { return Ping(ctx, c.client) }

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// ChatsCollection returns the conversation documents collection.
func (c *Client) ChatsCollection() *mongo.Collection {
	return c.db.Collection("chats")
}

// SummariesCollection returns the per-user conversation summary collection.
func (c *Client) SummariesCollection() *mongo.Collection {
	return c.db.Collection("user_chats")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates necessary indexes for all collections.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS =====
	// Unique email prevents duplicate registration; presence sweeps filter on
	// is_online + last_seen.
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "is_online", Value: 1}, {Key: "last_seen", Value: 1}},
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// ===== CHATS =====
	// Documents are addressed by conversation key (_id); participants lets
	// operators find every conversation of a user.
	chatIndex := mongo.IndexModel{Keys: bson.D{{Key: "participants", Value: 1}}}
	if _, err := c.ChatsCollection().Indexes().CreateOne(ctx, chatIndex); err != nil {
		return fmt.Errorf("failed to create chats index: %w", err)
	}

	// ===== USER_CHATS =====
	// Summary listing is "entries of owner, newest first".
	summaryIndex := mongo.IndexModel{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "date", Value: -1}}}
	if _, err := c.SummariesCollection().Indexes().CreateOne(ctx, summaryIndex); err != nil {
		return fmt.Errorf("failed to create user_chats index: %w", err)
	}

	return nil
}
