package main

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
)

const bufSize = 1024 * 1024

// startBufconn serves env over an in-memory listener and returns a client.
func startBufconn(t *testing.T, env *testEnv) v1.ChatServiceClient {
	t.Helper()
	limiter := middleware.NewLimiterStore(600, 100, time.Minute, time.Minute)
	t.Cleanup(limiter.Stop)

	lis := bufconn.Listen(bufSize)
	s := newGRPCServer(env.srv, env.jwt, limiter, env.srv.log)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return v1.NewChatServiceClient(conn)
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// recvUntil reads the stream until ok accepts a message.
func recvUntil[T any](t *testing.T, stream grpc.ServerStreamingClient[T], what string, ok func(*T) bool) *T {
	t.Helper()
	for {
		msg, err := stream.Recv()
		if err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if ok(msg) {
			return msg
		}
	}
}

func rowFor(list *v1.ContactList, uid string) *v1.ContactRow {
	for i := range list.Rows {
		if list.Rows[i].User.UID == uid {
			return &list.Rows[i]
		}
	}
	return nil
}

func TestEndToEnd_Conversation(t *testing.T) {
	env := newTestEnv(t)
	client := startBufconn(t, env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Registration is guarded by the admin PIN
	_, err := client.Register(ctx, &v1.RegisterRequest{Email: "alice@example.com", Password: "password1", DisplayName: "Alice", AdminPIN: "nope"})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	alice, err := client.Register(ctx, &v1.RegisterRequest{Email: "alice@example.com", Password: "password1", DisplayName: "Alice", AdminPIN: testPIN})
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if _, err := client.Register(ctx, &v1.RegisterRequest{Email: "bob@example.com", Password: "password1", DisplayName: "Bob", AdminPIN: testPIN}); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	bob, err := client.Login(ctx, &v1.LoginRequest{Email: "bob@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}
	aliceID, bobID := alice.User.UID, bob.User.UID
	actx, bctx := withToken(ctx, alice.Token), withToken(ctx, bob.Token)

	// Bob watches his contact list
	summaries, err := client.WatchSummaries(bctx, &v1.WatchSummariesRequest{})
	if err != nil {
		t.Fatalf("watch summaries: %v", err)
	}
	first := recvUntil(t, summaries, "first listing", func(l *v1.ContactList) bool { return rowFor(l, aliceID) != nil })
	if r := rowFor(first, aliceID); r.Unread != 0 || len(first.Rows) != 1 {
		t.Fatalf("unexpected first listing: %+v", first)
	}

	// Alice selects Bob and watches the conversation
	opened, err := client.OpenConversation(actx, &v1.CounterpartRequest{Counterpart: bobID})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !opened.Created {
		t.Fatalf("first selection should create the conversation")
	}
	conv, err := client.WatchConversation(actx, &v1.CounterpartRequest{Counterpart: bobID})
	if err != nil {
		t.Fatalf("watch conversation: %v", err)
	}
	snap := recvUntil(t, conv, "initial snapshot", func(*v1.ConversationSnapshot) bool { return true })
	if snap.Key != opened.Conversation.Key || len(snap.Messages) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	sent, err := client.SendMessage(actx, &v1.SendMessageRequest{Counterpart: bobID, Text: "hello bob"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	snap = recvUntil(t, conv, "sent message", func(s *v1.ConversationSnapshot) bool { return len(s.Messages) == 1 })
	if snap.Messages[0].ID != sent.Message.ID || snap.Messages[0].Text != "hello bob" {
		t.Fatalf("unexpected message: %+v", snap.Messages[0])
	}

	recvUntil(t, summaries, "unread from alice", func(l *v1.ContactList) bool {
		r := rowFor(l, aliceID)
		return r != nil && r.Unread == 1 && r.LastMessage == "hello bob"
	})

	// Bob opens the conversation: the message is marked read
	read, err := client.OpenConversation(bctx, &v1.CounterpartRequest{Counterpart: aliceID})
	if err != nil {
		t.Fatalf("bob open: %v", err)
	}
	if read.MarkedRead != 1 {
		t.Fatalf("expected one message marked read, got %d", read.MarkedRead)
	}
	recvUntil(t, summaries, "unread cleared", func(l *v1.ContactList) bool {
		r := rowFor(l, aliceID)
		return r != nil && r.Unread == 0 && l.Open == aliceID
	})
	snap = recvUntil(t, conv, "read receipt", func(s *v1.ConversationSnapshot) bool {
		return len(s.Messages) == 1 && len(s.Messages[0].ReadBy) == 2
	})

	// Bob cannot delete Alice's message; Alice can
	_, err = client.DeleteMessage(bctx, &v1.DeleteMessageRequest{Counterpart: aliceID, MessageID: sent.Message.ID})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied for someone else's message, got %v", err)
	}
	if _, err := client.DeleteMessage(actx, &v1.DeleteMessageRequest{Counterpart: bobID, MessageID: sent.Message.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recvUntil(t, conv, "deletion", func(s *v1.ConversationSnapshot) bool { return len(s.Messages) == 0 })
	recvUntil(t, summaries, "preview dropped", func(l *v1.ContactList) bool {
		r := rowFor(l, aliceID)
		return r != nil && r.LastMessage == ""
	})
	if u, _ := env.summaries.get(bobID, opened.Conversation.Key); u.LastMessage != "" {
		t.Fatalf("summary still previews the deleted message: %q", u.LastMessage)
	}
}

func TestEndToEnd_Rejections(t *testing.T) {
	env := newTestEnv(t)
	client := startBufconn(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.ListUsers(ctx, &v1.Empty{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without a token, got %v", err)
	}
	if _, err := client.ListUsers(withToken(ctx, "garbage"), &v1.Empty{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated for a bad token, got %v", err)
	}

	_, err := client.Register(ctx, &v1.RegisterRequest{Email: "not-an-email", Password: "short", DisplayName: "X", AdminPIN: testPIN})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for a malformed registration, got %v", err)
	}

	me, err := client.Register(ctx, &v1.RegisterRequest{Email: "carol@example.com", Password: "password1", DisplayName: "Carol", AdminPIN: testPIN})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cctx := withToken(ctx, me.Token)

	if _, err := client.SendMessage(cctx, &v1.SendMessageRequest{Counterpart: "xyz", Text: "hi"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for a malformed counterpart, got %v", err)
	}
	if _, err := client.SendMessage(cctx, &v1.SendMessageRequest{Counterpart: me.User.UID, Text: "   "}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an empty message, got %v", err)
	}
	if _, err := client.OpenConversation(cctx, &v1.CounterpartRequest{Counterpart: "0123456789abcdef01234567"}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for an unknown counterpart, got %v", err)
	}

	// Stream requests are validated too
	stream, err := client.WatchConversation(cctx, &v1.CounterpartRequest{Counterpart: "bad"})
	if err == nil {
		_, err = stream.Recv()
	}
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument on the stream, got %v", err)
	}
}

func TestEndToEnd_IdentitySignOut(t *testing.T) {
	env := newTestEnv(t)
	client := startBufconn(t, env)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	me, err := client.Register(ctx, &v1.RegisterRequest{Email: "dave@example.com", Password: "password1", DisplayName: "Dave", AdminPIN: testPIN})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	dctx := withToken(ctx, me.Token)

	identity, err := client.WatchIdentity(dctx, &v1.Empty{})
	if err != nil {
		t.Fatalf("watch identity: %v", err)
	}
	ev, err := identity.Recv()
	if err != nil {
		t.Fatalf("recv signed_in: %v", err)
	}
	if ev.Type != v1.IdentitySignedIn || ev.User.UID != me.User.UID || !ev.User.IsOnline {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	if !env.users.online(me.User.UID) {
		t.Fatalf("an open stream should mark the user online")
	}

	if _, err := client.SignOut(dctx, &v1.Empty{}); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	ev, err = identity.Recv()
	if err != nil {
		t.Fatalf("recv signed_out: %v", err)
	}
	if ev.Type != v1.IdentitySignedOut || ev.User.IsOnline {
		t.Fatalf("unexpected sign-out event: %+v", ev)
	}
	if env.users.online(me.User.UID) {
		t.Fatalf("sign out should leave the user offline")
	}
}
