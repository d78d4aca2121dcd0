// Package chat implements the conversation operations of one signed-in user:
// opening a conversation (and marking it read), sending, deleting and
// clearing messages, and the live contact list.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/pairchat/internal/assets"
	"github.com/PaulBabatuyi/pairchat/internal/convkey"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/media"
	"github.com/PaulBabatuyi/pairchat/internal/unread"
)

var (
	// ErrEmptyMessage is returned when a message has neither text nor an attachment.
	ErrEmptyMessage = errors.New("message has no text and no attachment")
	// ErrSelfConversation is returned when a user addresses themselves.
	ErrSelfConversation = convkey.ErrSelfConversation
	// ErrNotSender is returned when deleting a message someone else sent.
	ErrNotSender = errors.New("only the sender can delete a message")
)

// Conversations is the document store for conversation documents.
type Conversations interface {
	Get(ctx context.Context, key string) (*data.Conversation, error)
	Create(ctx context.Context, key string, participants []string) error
	Append(ctx context.Context, key string, participants []string, msg data.Message, last data.LastMessage) error
	ReplaceMessages(ctx context.Context, key string, msgs []data.Message) error
	DeleteMessage(ctx context.Context, key string, id int64, senderID string) (bool, error)
	SetLastMessage(ctx context.Context, key string, last *data.LastMessage) error
	SubscribeMany(ctx context.Context, keys []string) (map[string]<-chan *data.Conversation, error)
}

// Summaries is the per-user conversation summary index.
type Summaries interface {
	Touch(ctx context.Context, owner, key string, u data.SummaryUpdate) error
}

// Users looks up accounts and stores the last selected counterpart.
type Users interface {
	GetUserByID(ctx context.Context, uid string) (*data.User, error)
	ListUsers(ctx context.Context) ([]*data.User, error)
	SetLastSelected(ctx context.Context, uid, counterpart string) error
}

// Preparer turns a selected file into the asset to upload.
type Preparer interface {
	Prepare(ctx context.Context, f media.File) (media.Prepared, error)
}

// Uploader stores an asset and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f media.File, onProgress assets.Progress) (string, error)
}

// Service runs conversation operations against injected stores.
type Service struct {
	convs     Conversations
	summaries Summaries
	users     Users
	prep      Preparer
	uploader  Uploader
	log       logrus.FieldLogger
	now       func() time.Time

	idMu   sync.Mutex
	lastID int64
}

// NewService wires a Service. prep and uploader may be nil when attachments
// are disabled; sends with an attachment then fail with an upload error.
func NewService(convs Conversations, summaries Summaries, users Users, prep Preparer, uploader Uploader, log logrus.FieldLogger) *Service {
	return &Service{
		convs:     convs,
		summaries: summaries,
		users:     users,
		prep:      prep,
		uploader:  uploader,
		log:       log,
		now:       time.Now,
	}
}

// Opened is the result of opening a conversation.
type Opened struct {
	Key          string
	Conversation *data.Conversation
	MarkedRead   int // messages whose read set gained the caller
	Created      bool
}

// Open performs the closed-to-open transition of the conversation between
// me and counterpart: the document is created when missing, otherwise every
// message from the counterpart is marked read by me and the whole list is
// written back. Both users' summary entries get a fresh timestamp.
//
// Opening an already read conversation writes nothing to the message list.
func (s *Service) Open(ctx context.Context, me, counterpart string) (*Opened, error) {
	key, err := convkey.Key(me, counterpart)
	if err != nil {
		return nil, err
	}
	self, other, err := s.pair(ctx, me, counterpart)
	if err != nil {
		return nil, err
	}

	res := &Opened{Key: key}
	conv, err := s.convs.Get(ctx, key)
	switch {
	case errors.Is(err, data.ErrNotFound):
		participants := convkey.Participants(me, counterpart)
		if err := s.convs.Create(ctx, key, participants); err != nil {
			return nil, err
		}
		now := s.now().UTC()
		conv = &data.Conversation{ID: key, Participants: participants, Messages: []data.Message{}, CreatedAt: now, UpdatedAt: now}
		res.Created = true
	case err != nil:
		return nil, fmt.Errorf("load conversation %s: %w", key, err)
	default:
		marked, n := unread.MarkRead(conv.Messages, me)
		if n > 0 {
			if err := s.convs.ReplaceMessages(ctx, key, marked); err != nil {
				return nil, err
			}
			conv.Messages = marked
		}
		res.MarkedRead = n
	}
	res.Conversation = conv

	if err := s.touchBoth(ctx, key, self, other, data.SummaryUpdate{Date: s.now().UTC()}); err != nil {
		return nil, err
	}

	if err := s.users.SetLastSelected(ctx, me, counterpart); err != nil {
		s.log.WithFields(logrus.Fields{"uid": me, "counterpart": counterpart, "error": err}).Warn("store last selected")
	}

	s.log.WithFields(logrus.Fields{
		"uid":          me,
		"conversation": key,
		"created":      res.Created,
		"marked_read":  res.MarkedRead,
	}).Debug("conversation opened")
	return res, nil
}

// Close dismisses the open conversation of me.
func (s *Service) Close(ctx context.Context, me string) error {
	if err := s.users.SetLastSelected(ctx, me, ""); err != nil {
		return fmt.Errorf("clear last selected: %w", err)
	}
	return nil
}

// pair loads both users; an unknown counterpart is ErrNotFound.
func (s *Service) pair(ctx context.Context, me, counterpart string) (*data.User, *data.User, error) {
	self, err := s.users.GetUserByID(ctx, me)
	if err != nil {
		return nil, nil, fmt.Errorf("user %s: %w", me, err)
	}
	other, err := s.users.GetUserByID(ctx, counterpart)
	if err != nil {
		return nil, nil, fmt.Errorf("counterpart %s: %w", counterpart, err)
	}
	return self, other, nil
}

// touchBoth writes u to the summary entry of each participant, each pointing
// at the other one.
func (s *Service) touchBoth(ctx context.Context, key string, a, b *data.User, u data.SummaryUpdate) error {
	u.Counterpart = b.Info()
	if err := s.summaries.Touch(ctx, a.UID(), key, u); err != nil {
		return err
	}
	u.Counterpart = a.Info()
	return s.summaries.Touch(ctx, b.UID(), key, u)
}
