package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/db"
)

func TestRegisterLoginAndSendWithMongo(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbClient, err := db.New(ctx, uri, "chat_db_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	defer func() {
		_ = dbClient.UsersCollection().Drop(context.Background())
		_ = dbClient.ChatsCollection().Drop(context.Background())
		_ = dbClient.SummariesCollection().Drop(context.Background())
		_ = dbClient.Close(context.Background())
	}()
	if err := dbClient.CreateIndexes(ctx); err != nil {
		t.Fatalf("create indexes: %v", err)
	}

	log, _ := test.NewNullLogger()
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	summariesStore := data.NewSummariesStore(dbClient.SummariesCollection())
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	svc := chat.NewService(chatsStore, summariesStore, usersStore, nil, nil, log)

	env := &testEnv{
		srv: newServer(usersStore, chatsStore, svc, jwtMgr, NewConnectionHub(), testPIN, log),
		jwt: jwtMgr,
	}
	client := startBufconn(t, env)

	stamp := time.Now().UTC().Format("20060102-150405")
	register := func(name string) *v1.AuthResponse {
		resp, err := client.Register(ctx, &v1.RegisterRequest{
			Email:       stamp + "-" + name + "@example.com",
			Password:    "testPass123",
			DisplayName: name,
			AdminPIN:    testPIN,
		})
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		return resp
	}
	alice, bob := register("alice"), register("bob")

	loginResp, err := client.Login(ctx, &v1.LoginRequest{Email: stamp + "-alice@example.com", Password: "testPass123"})
	if err != nil {
		t.Fatalf("Login RPC failed: %v", err)
	}
	if loginResp.Token == "" || loginResp.User.UID != alice.User.UID {
		t.Fatalf("unexpected login response: %+v", loginResp)
	}

	actx := withToken(ctx, alice.Token)
	if _, err := client.SendMessage(actx, &v1.SendMessageRequest{Counterpart: bob.User.UID, Text: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	opened, err := client.OpenConversation(withToken(ctx, bob.Token), &v1.CounterpartRequest{Counterpart: alice.User.UID})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.MarkedRead != 1 || len(opened.Conversation.Messages) != 1 {
		t.Fatalf("unexpected open response: %+v", opened)
	}

	list, err := summariesStore.List(ctx, bob.User.UID, 10)
	if err != nil {
		t.Fatalf("list summaries: %v", err)
	}
	if len(list) != 1 || list[0].LastMessage != "hi" || list[0].Counterpart.UID != alice.User.UID {
		t.Fatalf("unexpected summaries: %+v", list)
	}
}
