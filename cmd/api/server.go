package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/data"
)

// userStore is the subset of data.UsersStore the handlers use.
type userStore interface {
	CreateUser(ctx context.Context, displayName, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	UserExists(ctx context.Context, email string) (bool, error)
	GetUserByID(ctx context.Context, uid string) (*data.User, error)
	ListUsers(ctx context.Context) ([]*data.User, error)
	SetPresence(ctx context.Context, uid string, online bool, at time.Time) error
	Touch(ctx context.Context, uid string, at time.Time) error
	SetLastSelected(ctx context.Context, uid, counterpart string) error
}

// conversationFeed opens live queries on conversation documents.
type conversationFeed interface {
	Subscribe(ctx context.Context, key string) (<-chan *data.Conversation, error)
}

// Server implements the chat service on top of the stores, the chat service
// and the session hub.
type Server struct {
	v1.UnimplementedChatServiceServer

	users    userStore
	feeds    conversationFeed
	chat     *chat.Service
	auth     *auth.JWTManager
	hub      *ConnectionHub
	adminPIN string
	log      logrus.FieldLogger
	now      func() time.Time
}

// newServer returns a ready-to-use Server.
func newServer(users userStore, feeds conversationFeed, svc *chat.Service, authMgr *auth.JWTManager, hub *ConnectionHub, adminPIN string, log logrus.FieldLogger) *Server {
	return &Server{
		users:    users,
		feeds:    feeds,
		chat:     svc,
		auth:     authMgr,
		hub:      hub,
		adminPIN: adminPIN,
		log:      log,
		now:      time.Now,
	}
}

// registerService registers the ChatService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	v1.RegisterChatServiceServer(s, srv)
}

// signOut marks uid offline and ends all of its sessions. The presence
// sweeper and the SignOut RPC both land here.
func (s *Server) signOut(ctx context.Context, uid string) {
	now := s.now().UTC()
	if err := s.users.SetPresence(ctx, uid, false, now); err != nil {
		s.log.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("mark offline on sign-out")
	}
	n := s.hub.SignOut(uid)
	s.hub.Presence(uid, false, now)
	s.log.WithFields(logrus.Fields{"uid": uid, "sessions": n}).Info("user signed out")
}

// join registers a live session and marks the user online when it is the first.
func (s *Server) join(ctx context.Context, uid string) *Session {
	sess, first := s.hub.Join(uid)
	if first {
		now := s.now().UTC()
		if err := s.users.SetPresence(ctx, uid, true, now); err != nil {
			s.log.WithFields(logrus.Fields{"uid": uid, "error": err}).Warn("mark online")
		}
		s.hub.Presence(uid, true, now)
	}
	return sess
}

// leave removes a session and marks the user offline when it was the last.
func (s *Server) leave(sess *Session) {
	if !s.hub.Leave(sess) {
		return
	}
	now := s.now().UTC()
	// The stream context is already cancelled here
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.SetPresence(ctx, sess.uid, false, now); err != nil {
		s.log.WithFields(logrus.Fields{"uid": sess.uid, "error": err}).Warn("mark offline")
	}
	s.hub.Presence(sess.uid, false, now)
}
