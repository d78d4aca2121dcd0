package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ChatsStore provides conversation document operations on the "chats" collection.
// Each document holds the whole message list of one pair of users.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// Get returns the conversation document for key, or ErrNotFound.
func (s *ChatsStore) Get(ctx context.Context, key string) (*Conversation, error) {
	var conv Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// Create inserts an empty conversation document. Losing a creation race to
// the other participant is not an error: the document exists either way.
func (s *ChatsStore) Create(ctx context.Context, key string, participants []string) error {
	now := time.Now().UTC()
	_, err := s.coll.InsertOne(ctx, &Conversation{
		ID:           key,
		Participants: participants,
		Messages:     []Message{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("create conversation %s: %w", key, err)
	}
	return nil
}

// Append pushes msg onto the conversation's message list, creating the
// document when it does not exist yet. $push merges with concurrent appenders
// instead of overwriting them.
func (s *ChatsStore) Append(ctx context.Context, key string, participants []string, msg Message, last LastMessage) error {
	now := time.Now().UTC()
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set": bson.M{
			"last_message": last,
			"participants": participants,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("append message to %s: %w", key, err)
	}
	return nil
}

// ReplaceMessages overwrites the whole message list.
func (s *ChatsStore) ReplaceMessages(ctx context.Context, key string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{
		"$set": bson.M{"messages": msgs, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("replace messages of %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes the message with id if it was sent by senderID.
// It reports whether a message was removed.
func (s *ChatsStore) DeleteMessage(ctx context.Context, key string, id int64, senderID string) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{
		"$pull": bson.M{"messages": bson.M{"id": id, "sender_id": senderID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("delete message %d from %s: %w", id, key, err)
	}
	if res.MatchedCount == 0 {
		return false, ErrNotFound
	}
	return res.ModifiedCount > 0, nil
}

// SetLastMessage replaces the conversation's last-message summary; nil
// removes it.
func (s *ChatsStore) SetLastMessage(ctx context.Context, key string, last *LastMessage) error {
	update := bson.M{"$set": bson.M{"updated_at": time.Now().UTC()}}
	if last != nil {
		update["$set"].(bson.M)["last_message"] = last
	} else {
		update["$unset"] = bson.M{"last_message": ""}
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": key}, update)
	if err != nil {
		return fmt.Errorf("set last message of %s: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// changeEvent is the subset of a change stream event we decode.
type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  *Conversation `bson:"fullDocument"`
}

// Subscribe opens a live query on one conversation document. The current
// state is delivered first, then every committed change in commit order.
// Only the newest undelivered state is kept when the reader falls behind.
// The channel is closed when ctx is done or the change stream fails;
// cancelling ctx releases the server-side cursor.
func (s *ChatsStore) Subscribe(ctx context.Context, key string) (<-chan *Conversation, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: key}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	// Open the stream before reading the snapshot so no commit falls in between
	cs, err := s.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("watch conversation %s: %w", key, err)
	}

	initial, err := s.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		_ = cs.Close(context.Background())
		return nil, err
	}

	out := make(chan *Conversation, 1)
	if initial != nil {
		out <- initial
	}

	go func() {
		defer close(out)
		defer cs.Close(context.Background())

		for cs.Next(ctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				return
			}
			// Deleted documents are treated like documents that never existed
			if ev.FullDocument == nil {
				continue
			}
			offerLatest(out, ev.FullDocument)
		}
	}()

	return out, nil
}

// SubscribeMany is Subscribe for several conversations over a single change
// stream, so one reader costs one pooled connection however many keys it
// follows. Each key gets its own channel with the same delivery rules as
// Subscribe; all of them are closed together.
func (s *ChatsStore) SubscribeMany(ctx context.Context, keys []string) (map[string]<-chan *Conversation, error) {
	outs := make(map[string]chan *Conversation, len(keys))
	for _, k := range keys {
		outs[k] = make(chan *Conversation, 1)
	}
	result := make(map[string]<-chan *Conversation, len(outs))
	for k, ch := range outs {
		result[k] = ch
	}
	if len(outs) == 0 {
		return result, nil
	}

	ids := make(bson.A, 0, len(outs))
	for k := range outs {
		ids = append(ids, k)
	}
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: bson.D{{Key: "$in", Value: ids}}}}}},
	}
	cs, err := s.coll.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("watch %d conversations: %w", len(ids), err)
	}

	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		_ = cs.Close(context.Background())
		return nil, fmt.Errorf("load %d conversations: %w", len(ids), err)
	}
	var initial []*Conversation
	if err := cursor.All(ctx, &initial); err != nil {
		_ = cs.Close(context.Background())
		return nil, err
	}
	for _, conv := range initial {
		if ch, ok := outs[conv.ID]; ok {
			ch <- conv
		}
	}

	go func() {
		defer func() {
			for _, ch := range outs {
				close(ch)
			}
		}()
		defer cs.Close(context.Background())

		for cs.Next(ctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				return
			}
			if ev.FullDocument == nil {
				continue
			}
			if ch, ok := outs[ev.FullDocument.ID]; ok {
				offerLatest(ch, ev.FullDocument)
			}
		}
	}()

	return result, nil
}

// offerLatest delivers v, replacing an undelivered older value. Callers must
// be the only writer of ch.
func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
