package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	authsvc "bchat/internal/app/services/auth"
	chatsvc "bchat/internal/app/services/chat"
	directorysvc "bchat/internal/app/services/directory"
	domainauth "bchat/internal/domain/auth"
	domainchat "bchat/internal/domain/chat"
	domainidentity "bchat/internal/domain/identity"
	domainprofile "bchat/internal/domain/profile"
	"bchat/internal/infra/broker/kafka"
	"bchat/internal/infra/config"
	mongodb "bchat/internal/infra/db/mongo"
	"bchat/internal/infra/feed"
	ginserver "bchat/internal/infra/http/gin"
	"bchat/internal/infra/obs"
	"bchat/internal/infra/schedule"
	"bchat/internal/infra/security"
	"bchat/internal/infra/storage/memory"
	"bchat/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger := obs.NewLogger(cfg.Env)
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
	}

	app, cleanup, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	ready    func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (application, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	identities, profiles, sessions, chatStore, ready, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return application{}, cleanup, err
	}

	hub := feed.NewHub(uuid.NewString(), logger)
	cleanups = append(cleanups, hub.Close)

	publisher, relayCleanup, err := buildFeedRelay(ctx, cfg, hub, logger)
	if err != nil {
		return application{}, cleanup, err
	}
	if relayCleanup != nil {
		cleanups = append(cleanups, relayCleanup)
	}

	uploader := buildUploader(cfg, logger)

	authService := &authsvc.Service{
		Identities: identities,
		Profiles:   profiles,
		Sessions:   sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Feed:       publisher,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	directoryService := &directorysvc.Service{
		Profiles: profiles,
		Feed:     publisher,
		Logger:   logger,
	}
	chatService := &chatsvc.Service{
		Store:  chatStore,
		Feed:   publisher,
		Logger: logger,
	}

	sweeper := &schedule.PresenceSweeper{
		Directory: directoryService,
		TTL:       cfg.PresenceTTL,
		Interval:  cfg.PresenceInterval,
		Logger:    logger,
	}
	if err := sweeper.Start(ctx); err != nil {
		return application{}, cleanup, err
	}
	cleanups = append(cleanups, func() {
		if err := sweeper.Stop(); err != nil {
			logger.Warn("sweeper shutdown failed", "error", err)
		}
	})

	handlers := ginserver.Handlers{
		Auth: ginserver.AuthHandler{
			Service:   authService,
			Directory: directoryService,
			Logger:    logger,
		},
		Profile: ginserver.ProfileHandler{
			Directory: directoryService,
			Logger:    logger,
		},
		Chat: ginserver.ChatHandler{
			Service:       chatService,
			Images:        uploader,
			MessageWindow: cfg.MessageWindow,
			Logger:        logger,
		},
		Feed: ginserver.NewFeedHandler(hub, logger),
		AuthMiddleware: ginserver.AuthMiddleware{
			Service: authService,
			Logger:  logger,
		}.Handle,
	}

	return application{handlers: handlers, ready: ready}, cleanup, nil
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (
	domainidentity.Repository,
	domainprofile.Repository,
	domainauth.SessionStore,
	domainchat.Store,
	func() error,
	error,
) {
	if cfg.MongoURI == "" {
		logger.Info("mongo not configured, using in-memory storage")
		return memory.NewIdentityRepository(),
			memory.NewProfileRepository(),
			memory.NewSessionStore(),
			memory.NewChatStore(),
			func() error { return nil },
			nil
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	identities := mongodb.NewIdentityRepository(client.DB)
	profiles := mongodb.NewProfileRepository(client.DB)
	sessions := mongodb.NewSessionStore(client.DB)
	chatStore := mongodb.NewChatStore(client.DB)

	indexCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	for _, ensure := range []func(context.Context) error{
		identities.EnsureIndexes,
		profiles.EnsureIndexes,
		sessions.EnsureIndexes,
		chatStore.EnsureIndexes,
	} {
		if err := ensure(indexCtx); err != nil {
			return nil, nil, nil, nil, nil, err
		}
	}
	logger.Info("mongo storage ready", "database", cfg.MongoDB)
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	return identities, profiles, sessions, chatStore, ready, nil
}

func buildFeedRelay(ctx context.Context, cfg config.Config, hub *feed.Hub, logger *slog.Logger) (feed.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return hub, nil, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return nil, nil, err
	}
	relay := &feed.Relay{
		Hub:      hub,
		Producer: producer,
		Topic:    cfg.KafkaTopic,
		Logger:   logger,
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, nil, relay, logger)
	if err != nil {
		_ = producer.Close()
		return nil, nil, err
	}
	go func() {
		if err := consumer.Run(ctx, []string{cfg.KafkaTopic}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("kafka consumer stopped", "error", err)
		}
	}()
	logger.Info("kafka feed relay attached", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
	cleanup := func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("kafka consumer close failed", "error", err)
		}
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
	return relay, cleanup, nil
}

func buildUploader(cfg config.Config, logger *slog.Logger) s3.Uploader {
	client, err := s3.NewClient(s3.Options{
		Endpoint:       cfg.S3Endpoint,
		PublicEndpoint: cfg.S3PublicEndpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		UseSSL:         cfg.S3UseSSL,
		Logger:         logger,
	})
	if err != nil {
		logger.Warn("object storage unavailable, image uploads disabled", "error", err)
		return s3.NoopUploader{}
	}
	return client
}
