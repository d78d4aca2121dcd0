package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/convkey"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/unread"
)

// WatchConversation streams the conversation with the counterpart: the
// current state first, then every committed change. Cancelling the call
// releases the live query.
func (s *Server) WatchConversation(req *v1.CounterpartRequest, stream grpc.ServerStreamingServer[v1.ConversationSnapshot]) error {
	uid, err := callerID(stream.Context())
	if err != nil {
		return err
	}
	key, err := convkey.Key(uid, req.Counterpart)
	if err != nil {
		return s.toStatus("watch conversation", err)
	}
	if _, err := s.users.GetUserByID(stream.Context(), req.Counterpart); err != nil {
		return s.toStatus("watch conversation", err)
	}

	sess := s.join(stream.Context(), uid)
	defer s.leave(sess)

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	feed, err := s.feeds.Subscribe(ctx, key)
	if err != nil {
		return s.toStatus("watch conversation", err)
	}

	// An existing document is already buffered; otherwise start from empty
	select {
	case conv, ok := <-feed:
		if !ok {
			return status.Error(codes.Unavailable, "conversation feed closed")
		}
		if err := stream.Send(snapshotOrEmpty(conv, key, uid, req.Counterpart)); err != nil {
			return err
		}
	default:
		if err := stream.Send(snapshotOrEmpty(nil, key, uid, req.Counterpart)); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return sess.Err()
		case <-sess.Events():
			// presence and open-state changes do not affect this stream
		case conv, ok := <-feed:
			if !ok {
				return status.Error(codes.Unavailable, "conversation feed closed")
			}
			if err := stream.Send(snapshotOrEmpty(conv, key, uid, req.Counterpart)); err != nil {
				return err
			}
		}
	}
}

func snapshotOrEmpty(conv *data.Conversation, key, me, counterpart string) *v1.ConversationSnapshot {
	if conv == nil {
		return &v1.ConversationSnapshot{
			Key:          key,
			Participants: convkey.Participants(me, counterpart),
			Messages:     []v1.Message{},
		}
	}
	snap := conversationToProto(conv)
	return &snap
}

// WatchSummaries streams the caller's contact list: every other user with
// unread count, last activity and presence, most recently active first.
// A new list is sent whenever the unread tracker publishes a change, the
// open conversation changes, or a contact's presence changes.
func (s *Server) WatchSummaries(req *v1.WatchSummariesRequest, stream grpc.ServerStreamingServer[v1.ContactList]) error {
	uid, err := callerID(stream.Context())
	if err != nil {
		return err
	}

	sess := s.join(stream.Context(), uid)
	defer s.leave(sess)

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	inbox, err := s.chat.OpenInbox(ctx, uid)
	if err != nil {
		return s.toStatus("watch summaries", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- inbox.Run(ctx) }()

	// SetOpen runs on its own goroutine so the pipeline can always publish.
	// Only the newest selection is pending at any time.
	opens := make(chan string, 1)
	go func() {
		for cp := range opens {
			if err := inbox.SetOpen(ctx, cp); err != nil {
				return
			}
		}
	}()
	defer close(opens)

	open := inbox.Open()
	send := func() error {
		return stream.Send(contactList(open, inbox.Rows(req.Search)))
	}
	if err := send(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return sess.Err()
		case ev := <-sess.Events():
			switch {
			case ev.setOpen:
				open = ev.counterpart
				offerOpen(opens, ev.counterpart)
			case ev.presence:
				if ev.uid == uid {
					continue
				}
				inbox.SetPresence(ev.uid, ev.online, ev.lastSeen)
				if err := send(); err != nil {
					return err
				}
			}
		case c, ok := <-inbox.Changes():
			if !ok {
				err := <-runErr
				if errors.Is(err, context.Canceled) {
					return nil
				}
				s.log.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("contact list pipeline stopped")
				return status.Error(codes.Unavailable, "contact list feed closed, reconnect")
			}
			inbox.Apply(c)
			if err := send(); err != nil {
				return err
			}
		}
	}
}

// offerOpen replaces any pending selection on the one-slot ch with cp. The
// caller must be the only writer, so the send never blocks.
func offerOpen(ch chan string, cp string) {
	select {
	case <-ch:
	default:
	}
	ch <- cp
}

func contactList(open string, rows []unread.Row) *v1.ContactList {
	out := &v1.ContactList{Open: open, Rows: make([]v1.ContactRow, 0, len(rows))}
	for _, r := range rows {
		out.Rows = append(out.Rows, v1.ContactRow{
			User: v1.User{
				UID:         r.UID,
				DisplayName: r.DisplayName,
				Email:       r.Email,
				IsOnline:    r.Online,
				LastSeen:    r.LastSeen,
			},
			Unread:       r.Unread,
			LastActivity: r.LastActivity,
			LastMessage:  r.LastMessage,
		})
	}
	return out
}

// WatchIdentity sends signed_in with the caller's identity, then signed_out
// when the caller signs out from any session or is signed out for idleness.
func (s *Server) WatchIdentity(_ *v1.Empty, stream grpc.ServerStreamingServer[v1.IdentityEvent]) error {
	uid, err := callerID(stream.Context())
	if err != nil {
		return err
	}
	user, err := s.users.GetUserByID(stream.Context(), uid)
	if err != nil {
		return s.toStatus("watch identity", err)
	}

	sess := s.join(stream.Context(), uid)
	defer s.leave(sess)

	me := userToProto(user)
	me.IsOnline = true
	if err := stream.Send(&v1.IdentityEvent{Type: v1.IdentitySignedIn, User: me}); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-sess.Events():
		case <-sess.Done():
			if !errors.Is(sess.Err(), errSignedOut) {
				return sess.Err()
			}
			me.IsOnline = false
			return stream.Send(&v1.IdentityEvent{Type: v1.IdentitySignedOut, User: me})
		}
	}
}
