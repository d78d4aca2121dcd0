package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/pairchat/internal/convkey"
	"github.com/PaulBabatuyi/pairchat/internal/unread"
)

// Inbox is the live contact list of one user: one conversation feed per
// contact fanned into an unread pipeline, and a directory holding the rows.
//
// Run owns the pipeline. Apply, Rows and SetPresence must be called from a
// single goroutine, normally the one draining Changes.
type Inbox struct {
	me       string
	open     string
	pipeline *unread.Pipeline
	dir      *unread.Directory
}

// OpenInbox follows every conversation me can have through one shared
// subscription and returns the inbox with its first listing ready. The conversation me last selected is
// restored as open. Subscriptions live until ctx is done.
func (s *Service) OpenInbox(ctx context.Context, me string) (*Inbox, error) {
	self, err := s.users.GetUserByID(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", me, err)
	}
	all, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var contacts []unread.Contact
	for _, u := range all {
		if u.UID() == me {
			continue
		}
		contacts = append(contacts, unread.Contact{
			UID:         u.UID(),
			DisplayName: u.DisplayName,
			Email:       u.Email,
			Online:      u.IsOnline,
			LastSeen:    u.LastSeen,
		})
	}

	open := ""
	for _, c := range contacts {
		if c.UID == self.LastSelected {
			open = c.UID
			break
		}
	}

	keys := make([]string, 0, len(contacts))
	byKey := make(map[string]string, len(contacts))
	for _, c := range contacts {
		key, err := convkey.Key(me, c.UID)
		if err != nil {
			continue
		}
		keys = append(keys, key)
		byKey[key] = c.UID
	}
	feeds, err := s.convs.SubscribeMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	p := unread.NewPipeline(me, open)
	first := make(map[string]int, len(contacts))
	var primed []unread.Change
	for _, key := range keys {
		uid, feed := byKey[key], feeds[key]
		// The current state is already buffered when the document exists
		select {
		case conv, ok := <-feed:
			if ok && conv != nil {
				ch := p.Prime(uid, conv)
				first[uid] = ch.Unread
				primed = append(primed, ch)
			}
		default:
		}
		p.AddFeed(ctx, uid, feed)
	}

	dir := unread.NewDirectory(contacts, first)
	for _, ch := range primed {
		dir.Apply(ch)
	}

	s.log.WithFields(logrus.Fields{"uid": me, "contacts": len(contacts), "open": open}).Debug("inbox opened")
	return &Inbox{me: me, open: open, pipeline: p, dir: dir}, nil
}

// Open returns the counterpart restored as open when the inbox was created.
func (in *Inbox) Open() string { return in.open }

// Run drives the pipeline until ctx is done or a feed fails.
func (in *Inbox) Run(ctx context.Context) error { return in.pipeline.Run(ctx) }

// Changes is closed when Run returns.
func (in *Inbox) Changes() <-chan unread.Change { return in.pipeline.Changes() }

// SetOpen tells the tracker which conversation is on screen ("" for none).
func (in *Inbox) SetOpen(ctx context.Context, counterpart string) error {
	return in.pipeline.SetOpen(ctx, counterpart)
}

// Apply records a change; it reports whether the counterpart is listed.
func (in *Inbox) Apply(c unread.Change) bool { return in.dir.Apply(c) }

// SetPresence updates a contact's presence.
func (in *Inbox) SetPresence(uid string, online bool, lastSeen time.Time) {
	in.dir.SetPresence(uid, online, lastSeen)
}

// Rows returns the ordered contact rows matching search.
func (in *Inbox) Rows(search string) []unread.Row { return in.dir.Rows(search) }
