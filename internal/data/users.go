// Package data provides DB models and stores.
package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"fmt"
	"time" // Timestamps

	"github.com/PaulBabatuyi/pairchat/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"          // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo"         // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options" // Query options
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with hashed password.
func (u *UsersStore) CreateUser(ctx context.Context, displayName, email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		DisplayName: normalize.DisplayName(displayName),
		Email:       normalize.Email(email),
		Password:    hashedPassword, // Already hashed by auth.HashPassword()
		LastSeen:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// Unique index on email turns a second registration into a duplicate key error
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	// MongoDB auto-generates the _id field; its hex form is the user's uid
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by uid (hex ObjectID).
func (u *UsersStore) GetUserByID(ctx context.Context, uid string) (*User, error) {
	id, err := bson.ObjectIDFromHex(uid)
	if err != nil {
		// A malformed uid can never match a stored user
		return nil, ErrNotFound
	}

	var user User
	err = u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns every registered user ordered by display name.
// The password hash is projected out.
func (u *UsersStore) ListUsers(ctx context.Context) ([]*User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "display_name", Value: 1}}).
		SetProjection(bson.M{"password": 0})

	cursor, err := u.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetPresence records whether the user is online and when they were last seen.
func (u *UsersStore) SetPresence(ctx context.Context, uid string, online bool, at time.Time) error {
	return u.update(ctx, uid, bson.M{"is_online": online, "last_seen": at, "updated_at": at})
}

// Touch refreshes last_seen without changing the online flag.
func (u *UsersStore) Touch(ctx context.Context, uid string, at time.Time) error {
	return u.update(ctx, uid, bson.M{"last_seen": at})
}

// SetLastSelected stores the counterpart the user last opened ("" clears it).
func (u *UsersStore) SetLastSelected(ctx context.Context, uid, counterpart string) error {
	return u.update(ctx, uid, bson.M{"last_selected": counterpart})
}

// IdleOnline returns users still flagged online whose last_seen is before cutoff.
func (u *UsersStore) IdleOnline(ctx context.Context, cutoff time.Time) ([]*User, error) {
	filter := bson.M{"is_online": true, "last_seen": bson.M{"$lt": cutoff}}
	cursor, err := u.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *UsersStore) update(ctx context.Context, uid string, set bson.M) error {
	id, err := bson.ObjectIDFromHex(uid)
	if err != nil {
		return ErrNotFound
	}
	res, err := u.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
