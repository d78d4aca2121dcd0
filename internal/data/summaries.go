package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SummariesStore maintains each user's conversation-summary index in the
// "user_chats" collection, one document per (owner, conversation) pair.
type SummariesStore struct {
	coll *mongo.Collection
}

// NewSummariesStore returns a SummariesStore using given collection.
func NewSummariesStore(coll *mongo.Collection) *SummariesStore {
	return &SummariesStore{coll: coll}
}

// Touch upserts owner's entry for the conversation key.
func (s *SummariesStore) Touch(ctx context.Context, owner, key string, u SummaryUpdate) error {
	set := bson.M{
		"owner":            owner,
		"conversation_key": key,
		"counterpart":      u.Counterpart,
		"date":             u.Date,
	}
	update := bson.M{"$set": set}
	switch {
	case u.LastMessage != "":
		set["last_message"] = u.LastMessage
	case u.ResetPreview:
		update["$unset"] = bson.M{"last_message": ""}
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": summaryID(owner, key)},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("touch summary %s for %s: %w", key, owner, err)
	}
	return nil
}

// List returns owner's summary entries, most recent first.
func (s *SummariesStore) List(ctx context.Context, owner string, limit int64) ([]*Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"owner": owner}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*Summary
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
