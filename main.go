package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"social-chat/internal/auth"
	"social-chat/internal/config"
	"social-chat/internal/db"
	"social-chat/internal/events"
	grpcserver "social-chat/internal/grpc"
	"social-chat/internal/logging"
	"social-chat/internal/presence"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/realtime"
	"social-chat/internal/repositories"
	"social-chat/internal/router"
	"social-chat/internal/service"
	"social-chat/internal/telemetry"
	"social-chat/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.AppName, cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.AppName, cfg.AppEnv, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	database, err := db.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	var presenceStore service.PresenceStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid redis url")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, presence falls back to stored flags")
		} else {
			presenceStore = presence.NewRedisStore(rdb, cfg.PresenceTTL)
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	logger.Info().
		Str("mode", rabbitmq.PublisherMode(publisher)).
		Str("reason", rabbitmq.PublisherNoopReason(publisher)).
		Msg("event publisher ready")
	emitter := events.NewEmitter(publisher, cfg.AppName, cfg.AppEnv, logger)

	hub := ws.NewHub(logger)
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unreachable, realtime delivery stays local")
		} else {
			defer nc.Drain()
			relay := realtime.NewRelay(nc, cfg.NATSSubjectPrefix, hub, logger)
			if err := relay.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("realtime relay subscription failed")
			} else {
				hub.SetRelay(relay)
			}
		}
	}

	validate := validator.New()
	tx := db.NewTxManager(database)
	profileRepo := repositories.NewProfileRepo(database)

	profiles := service.NewProfileService(profileRepo, presenceStore, validate, logger)
	notifications := service.NewNotificationService(repositories.NewNotificationRepo(database), emitter, hub, validate, logger)
	friendships := service.NewFriendshipService(
		tx,
		repositories.NewFriendRequestRepo(database),
		repositories.NewFriendshipRepo(database),
		profileRepo,
		notifications,
		emitter,
		validate,
		logger,
	)
	chats := service.NewChatService(service.ChatDeps{
		Tx:          tx,
		Chats:       repositories.NewChatRepo(database),
		Messages:    repositories.NewMessageRepo(database),
		Profiles:    profileRepo,
		Friends:     friendships,
		Notifier:    notifications,
		Events:      emitter,
		Broadcaster: hub,
	}, validate, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Deps{
		ServiceName:   cfg.AppName,
		Logger:        logger,
		Verifier:      auth.NewVerifier(cfg.JWTSecret),
		Issuer:        auth.NewIssuer(cfg.JWTSecret, 24*time.Hour),
		DevRoutes:     cfg.IsDevelopment(),
		Profiles:      profiles,
		Friendships:   friendships,
		Chats:         chats,
		Notifications: notifications,
		Hub:           hub,
		Events:        emitter,
		Heartbeat:     cfg.PresenceTTL / 3,
		Health:        database.PingContext,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.NewServer(database, 0, logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.GRPCAddr).Msg("failed to listen for grpc")
	}
	go grpcSrv.WatchHealth(ctx)
	go func() {
		if err := grpcSrv.Serve(grpcLis); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	grpcSrv.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracing shutdown")
	}
}
