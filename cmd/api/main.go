package main

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	v1 "github.com/PaulBabatuyi/pairchat/api/chat/v1"
	"github.com/PaulBabatuyi/pairchat/internal/assets"
	"github.com/PaulBabatuyi/pairchat/internal/auth"
	"github.com/PaulBabatuyi/pairchat/internal/chat"
	"github.com/PaulBabatuyi/pairchat/internal/config"
	"github.com/PaulBabatuyi/pairchat/internal/data"
	"github.com/PaulBabatuyi/pairchat/internal/db"
	"github.com/PaulBabatuyi/pairchat/internal/logger"
	"github.com/PaulBabatuyi/pairchat/internal/media"
	"github.com/PaulBabatuyi/pairchat/internal/middleware"
	"github.com/PaulBabatuyi/pairchat/internal/presence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log, logCloser := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer logCloser.Close()

	ctx := context.Background()

	// Initialize database
	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(context.Background())
	}()

	// Ensure indexes exist
	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	// Create stores
	usersStore := data.NewUsersStore(dbClient.UsersCollection())
	chatsStore := data.NewChatsStore(dbClient.ChatsCollection())
	summariesStore := data.NewSummariesStore(dbClient.SummariesCollection())

	// JWT_KEYS enables rotation; JWT_SECRET alone is the single-key setup
	var jwtMgr *auth.JWTManager
	if cfg.JWTKeys != "" {
		keys, err := cfg.SigningKeys()
		if err != nil {
			log.Fatalf("jwt keys: %v", err)
		}
		jwtMgr = auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.JWTTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	// Media pipeline: size policy, best-effort compression, asset host upload
	preparer := &media.Preparer{
		Policy: media.Policy{MaxBytes: cfg.MediaMaxBytes},
		Images: media.ImageCompressor{MaxBytes: cfg.ImageMaxBytes, MaxDimension: cfg.ImageMaxDimension, MaxPixels: cfg.ImageMaxPixels},
		Videos: media.VideoTranscoder{FFmpegPath: cfg.FFmpegPath, MaxHeight: cfg.VideoMaxHeight, Bitrate: cfg.VideoBitrate},
		Log:    log.WithField("component", "media"),
	}
	if cfg.AssetUploadURL == "" {
		log.Warn("ASSET_UPLOAD_URL is not set; messages with attachments will fail")
	}
	uploader := assets.NewClient(cfg.AssetUploadURL, cfg.AssetUploadPreset, cfg.AssetTimeout)

	chatSvc := chat.NewService(chatsStore, summariesStore, usersStore, preparer, uploader, log.WithField("component", "chat"))

	// Small burst allows a couple of quick retries on Register and Login
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute, 10*time.Minute)
	defer limiterStore.Stop()

	var serverOpts []grpc.ServerOption

	// If TLS certs are configured, create server credentials and require TLS
	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			log.Fatalf("failed to load TLS certs: %v", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	if n, ok := maxRecvMsgSize(cfg.MediaMaxBytes); ok {
		serverOpts = append(serverOpts, grpc.MaxRecvMsgSize(n))
	}

	hub := NewConnectionHub()
	srv := newServer(usersStore, chatsStore, chatSvc, jwtMgr, hub, cfg.AdminPIN, log.WithField("component", "server"))
	grpcServer := newGRPCServer(srv, jwtMgr, limiterStore, log.WithField("component", "grpc"), serverOpts...)

	// Idle users are signed out like an explicit SignOut
	sweeper := presence.NewSweeper(usersStore, func(uid string) {
		n := hub.SignOut(uid)
		hub.Presence(uid, false, time.Now().UTC())
		log.WithFields(logrus.Fields{"uid": uid, "sessions": n}).Debug("idle sessions ended")
	}, cfg.PresenceSweep, cfg.PresenceIdle, log.WithField("component", "presence"))
	sweeper.Start()
	defer sweeper.Stop()

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		log.Infof("gRPC server listening on %s", cfg.GRPCAddr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatalf("gRPC server exit: %v", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           healthRouter(dbClient, cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("health endpoints listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("health server exit: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	// Streams are long-lived; give them a moment, then cut them
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
}

// newGRPCServer builds the gRPC server with the interceptor chain and
// registers the chat service on it.
func newGRPCServer(srv *Server, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore, log logrus.FieldLogger, opts ...grpc.ServerOption) *grpc.Server {
	limited := map[string]bool{
		v1.ChatService_Register_FullMethodName: true,
		v1.ChatService_Login_FullMethodName:    true,
	}
	validate := validator.New(validator.WithRequiredStructEnabled())

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			loggingUnaryInterceptor(log),
			middleware.RateLimitUnaryInterceptor(limiter, limited),
			authUnaryInterceptor(jwtMgr),
			validateUnaryInterceptor(validate),
		),
		grpc.ChainStreamInterceptor(
			loggingStreamInterceptor(log),
			authStreamInterceptor(jwtMgr),
			validateStreamInterceptor(validate),
		),
	)

	s := grpc.NewServer(opts...)
	registerService(s, srv)
	return s
}

// maxRecvMsgSize sizes the gRPC receive limit for attachments of up to
// mediaMax bytes, which travel base64 encoded inside JSON. A non-positive
// mediaMax means no attachment limit, so gRPC keeps its own default.
func maxRecvMsgSize(mediaMax int64) (int, bool) {
	if mediaMax <= 0 {
		return 0, false
	}
	encoded := (mediaMax + 2) / 3 * 4
	return int(min(encoded+1<<20, math.MaxInt32)), true
}
