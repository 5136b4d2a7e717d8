package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/csssit/club-api/internal/config"
	"github.com/csssit/club-api/internal/handler"
	notificationHandler "github.com/csssit/club-api/internal/handler/notification"
	"github.com/csssit/club-api/internal/middleware"
	"github.com/csssit/club-api/internal/realtime"
	"github.com/csssit/club-api/internal/repository/postgres"
	"github.com/csssit/club-api/internal/router"
	notificationService "github.com/csssit/club-api/internal/service/notification"
	"github.com/csssit/club-api/pkg/auth"
	"github.com/csssit/club-api/pkg/logger"
	"github.com/csssit/club-api/pkg/media"
	"github.com/csssit/club-api/pkg/messaging"
	redisbroker "github.com/csssit/club-api/pkg/messaging/redis"
	"github.com/csssit/club-api/pkg/metrics"
	"github.com/csssit/club-api/pkg/worker"
)

func main() {
	log := logger.New(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("clubapi")

	// Repositories
	base := postgres.NewBaseRepository(db)
	notificationRepo := postgres.NewNotificationRepository(base)
	userRepo := postgres.NewUserRepository(base)

	// Realtime fabric: the in-process hub always exists; with redis enabled
	// the service publishes cluster-wide and a bridge feeds this process's
	// hub.
	hub := realtime.NewHub(log, m)
	var broker messaging.Broker = hub

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Redis.Enabled {
		rb, err := redisbroker.NewRedisBroker(redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rb.Close()

		broker = realtime.NewClusterBroker(rb)
		bridge := realtime.NewBridge(rb, hub, log)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("realtime bridge stopped")
			}
		}()
	}

	// Services
	tokens := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	signer := media.NewSigner(media.Config{
		BaseURL:   cfg.Media.BaseURL,
		CloudName: cfg.Media.CloudName,
		APISecret: cfg.Media.APISecret,
		TTL:       cfg.Media.TTL(),
	})
	publishPool := worker.NewPool(cfg.Realtime.PublishWorkers, cfg.Realtime.PublishQueue)
	defer publishPool.Stop()

	notificationSvc := notificationService.NewService(
		notificationRepo, userRepo, broker, signer, publishPool, log, m,
	)

	// Transport
	resolver := realtime.NewResolver(tokens, log)
	gateway := realtime.NewGateway(hub, resolver, realtime.GatewayConfig{
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, log, m)

	authMiddleware := middleware.NewAuthMiddleware(tokens)
	notifH := notificationHandler.NewHandler(notificationRepo, notificationSvc)
	healthH := handler.NewHealthHandler(db, func() error {
		return broker.Publish(ctx, "health_probe", "ping")
	})

	r := router.NewRouter(authMiddleware, notifH, healthH, gateway, m, log, router.Config{
		RateLimit: rate.Limit(cfg.Rate.RequestsPerSecond),
		RateBurst: cfg.Rate.Burst,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
