package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
)

// methods that don't require authentication
var publicMethods = map[string]bool{
	v1.ChatService_Register_FullMethodName: true,
	v1.ChatService_Login_FullMethodName:    true,
}

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(authContextKey{}).(*auth.Claims)
	return c, ok && c != nil
}

// callerID returns the authenticated uid or an Unauthenticated status.
func callerID(ctx context.Context) (string, error) {
	c, ok := getClaimsFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "not authenticated")
	}
	return c.UserID, nil
}

// authenticate verifies the bearer token in ctx's metadata.
func authenticate(ctx context.Context, j *auth.JWTManager) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
	if token == "" {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token")
	}

	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return claims, nil
}

// authUnaryInterceptor enforces JWT authentication for every method except
// Register and Login.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		claims, err := authenticate(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(context.WithValue(ctx, authContextKey{}, claims), req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		claims, err := authenticate(ss.Context(), j)
		if err != nil {
			return err
		}
		newCtx := context.WithValue(ss.Context(), authContextKey{}, claims)
		return handler(srv, wrappedStream{ServerStream: ss, ctx: newCtx})
	}
}

// validationError turns validator output into an InvalidArgument status.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
		}
		return status.Errorf(codes.InvalidArgument, "invalid request: %s", strings.Join(fields, ", "))
	}
	return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
}

func validateStruct(v *validator.Validate, req interface{}) error {
	if req == nil {
		return nil
	}
	if err := v.Struct(req); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// not a struct; nothing to check
			return nil
		}
		return validationError(err)
	}
	return nil
}

// validateUnaryInterceptor checks the `validate` tags of every request.
func validateUnaryInterceptor(v *validator.Validate) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := validateStruct(v, req); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// validateStreamInterceptor checks every message the client sends on a stream.
func validateStreamInterceptor(v *validator.Validate) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, validatingStream{ServerStream: ss, v: v})
	}
}

type validatingStream struct {
	grpc.ServerStream
	v *validator.Validate
}

func (s validatingStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	return validateStruct(s.v, m)
}

// loggingUnaryInterceptor logs each call with a request id, duration and code.
func loggingUnaryInterceptor(log logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, log, info.FullMethod, start, err)
		return resp, err
	}
}

// loggingStreamInterceptor logs each stream when it ends.
func loggingStreamInterceptor(log logrus.FieldLogger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(ss.Context(), log, info.FullMethod, start, err)
		return err
	}
}

func logCall(ctx context.Context, log logrus.FieldLogger, method string, start time.Time, err error) {
	requestID := uuid.NewString()
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
			requestID = ids[0]
		}
	}

	code := status.Code(err)
	entry := log.WithFields(logrus.Fields{
		"method":     method,
		"request_id": requestID,
		"code":       code.String(),
		"duration":   time.Since(start).String(),
	})
	switch code {
	case codes.OK, codes.Canceled:
		entry.Debug("rpc")
	case codes.Internal, codes.Unknown, codes.DataLoss:
		entry.WithField("error", err).Error("rpc failed")
	default:
		entry.WithField("error", err).Info("rpc rejected")
	}
}

// wrappedStream wraps grpc.ServerStream to override Context()
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (w wrappedStream) Context() context.Context { return w.ctx }
