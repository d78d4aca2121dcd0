package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/assets"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/media"
	"github.com/PaulBabatuyi/pairchat/internal/normalize"
)

var (
	errSignedOut    = status.Error(codes.Unauthenticated, "signed out")
	errSlowConsumer = status.Error(codes.ResourceExhausted, "session fell behind, reconnect")
)

// toStatus maps domain errors to gRPC status codes. Anything unrecognised is
// logged and reported as Internal without leaking details.
func (s *Server) toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var oversize *media.OversizeError
	var upload *assets.UploadError
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, auth.ErrInvalidPIN):
		return status.Error(codes.PermissionDenied, "invalid admin pin")
	case errors.Is(err, auth.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, data.ErrUserExists):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, data.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, chat.ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, chat.ErrSelfConversation):
		return status.Error(codes.InvalidArgument, "cannot open a conversation with yourself")
	case errors.Is(err, chat.ErrNotSender):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.As(err, &oversize):
		return status.Error(codes.InvalidArgument, oversize.Error())
	case errors.As(err, &upload):
		return status.Error(codes.Unavailable, upload.Error())
	}

	s.log.WithFields(logrus.Fields{"op": op, "error": err}).Error("request failed")
	return status.Errorf(codes.Internal, "%s failed", op)
}

func userToProto(u *data.User) v1.User {
	return v1.User{
		UID:         u.UID(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		IsOnline:    u.IsOnline,
		LastSeen:    u.LastSeen,
	}
}

func messageToProto(m data.Message) v1.Message {
	out := v1.Message{
		ID:        m.ID,
		Text:      m.Text,
		SenderID:  m.SenderID,
		Date:      m.Date,
		ReadBy:    m.ReadBy,
		MediaURL:  m.MediaURL,
		MediaType: string(m.MediaType),
		FileName:  m.FileName,
	}
	if out.ReadBy == nil {
		out.ReadBy = []string{}
	}
	if m.HasMedia() {
		mode, url := media.Preview(m.MediaType, m.MediaURL)
		out.Preview = &v1.MediaPreview{Mode: string(mode), URL: url}
	}
	return out
}

func conversationToProto(c *data.Conversation) v1.ConversationSnapshot {
	out := v1.ConversationSnapshot{
		Key:          c.ID,
		Participants: c.Participants,
		Messages:     make([]v1.Message, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		out.Messages = append(out.Messages, messageToProto(m))
	}
	return out
}

// Register creates an account after checking the admin PIN, and signs it in.
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.AuthResponse, error) {
	if err := auth.CheckAdminPIN(s.adminPIN, req.AdminPIN); err != nil {
		s.log.WithField("email", normalize.Email(req.Email)).Warn("registration with wrong admin pin")
		return nil, s.toStatus("register", err)
	}
	name := normalize.DisplayName(req.DisplayName)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "display name is required")
	}

	// A taken email is refused before paying for a bcrypt hash; the unique
	// index still decides concurrent registrations.
	exists, err := s.users.UserExists(ctx, req.Email)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	if exists {
		return nil, s.toStatus("register", data.ErrUserExists)
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, s.toStatus("register", err)
	}

	user, err := s.users.CreateUser(ctx, name, req.Email, hashed)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	s.log.WithField("uid", user.UID()).Info("user registered")
	return s.issue(user)
}

// Login authenticates a user and returns a JWT token.
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			// same answer as a wrong password
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return nil, s.toStatus("login", err)
	}
	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return s.issue(user)
}

func (s *Server) issue(user *data.User) (*v1.AuthResponse, error) {
	token, expiresAt, err := s.auth.GenerateToken(user.UID(), user.Email)
	if err != nil {
		return nil, s.toStatus("issue token", err)
	}
	return &v1.AuthResponse{User: userToProto(user), Token: token, ExpiresAt: expiresAt}, nil
}

// SignOut ends every live session of the caller and marks them offline.
func (s *Server) SignOut(ctx context.Context, _ *v1.Empty) (*v1.Empty, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	s.signOut(ctx, uid)
	return &v1.Empty{}, nil
}

// Heartbeat refreshes the caller's last-seen time.
func (s *Server) Heartbeat(ctx context.Context, _ *v1.Empty) (*v1.Empty, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.Touch(ctx, uid, s.now().UTC()); err != nil {
		return nil, s.toStatus("heartbeat", err)
	}
	return &v1.Empty{}, nil
}

// ListUsers returns every other user.
func (s *Server) ListUsers(ctx context.Context, _ *v1.Empty) (*v1.ListUsersResponse, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, s.toStatus("list users", err)
	}
	out := &v1.ListUsersResponse{Users: make([]v1.User, 0, len(users))}
	for _, u := range users {
		if u.UID() == uid {
			continue
		}
		out.Users = append(out.Users, userToProto(u))
	}
	return out, nil
}

// OpenConversation selects a counterpart: the conversation is created or
// marked read, and the caller's contact lists show zero unread for it.
func (s *Server) OpenConversation(ctx context.Context, req *v1.CounterpartRequest) (*v1.OpenConversationResponse, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.chat.Open(ctx, uid, req.Counterpart)
	if err != nil {
		return nil, s.toStatus("open conversation", err)
	}
	s.hub.SetOpen(uid, req.Counterpart)

	return &v1.OpenConversationResponse{
		Conversation: conversationToProto(res.Conversation),
		Created:      res.Created,
		MarkedRead:   res.MarkedRead,
	}, nil
}

// CloseConversation dismisses the open conversation.
func (s *Server) CloseConversation(ctx context.Context, _ *v1.Empty) (*v1.Empty, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chat.Close(ctx, uid); err != nil {
		return nil, s.toStatus("close conversation", err)
	}
	s.hub.SetOpen(uid, "")
	return &v1.Empty{}, nil
}

// SendMessage sends text and/or one attachment to the counterpart.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.SendMessageResponse, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	out := chat.Outgoing{From: uid, To: req.Counterpart, Text: req.Text}
	if a := req.Attachment; a != nil {
		out.Attachment = &media.File{Name: a.Name, MIMEType: a.MIMEType, Data: a.Data}
		out.OnProgress = func(sent, total int64) {
			s.log.WithFields(logrus.Fields{"uid": uid, "sent": sent, "total": total}).Trace("upload progress")
		}
	}

	msg, err := s.chat.Send(ctx, out)
	if err != nil {
		return nil, s.toStatus("send message", err)
	}
	return &v1.SendMessageResponse{Message: messageToProto(*msg)}, nil
}

// DeleteMessage removes one of the caller's messages.
func (s *Server) DeleteMessage(ctx context.Context, req *v1.DeleteMessageRequest) (*v1.Empty, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chat.DeleteMessage(ctx, uid, req.Counterpart, req.MessageID); err != nil {
		return nil, s.toStatus("delete message", err)
	}
	return &v1.Empty{}, nil
}

// ClearConversation empties the conversation with the counterpart.
func (s *Server) ClearConversation(ctx context.Context, req *v1.CounterpartRequest) (*v1.Empty, error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.chat.Clear(ctx, uid, req.Counterpart); err != nil {
		return nil, s.toStatus("clear conversation", err)
	}
	return &v1.Empty{}, nil
}
