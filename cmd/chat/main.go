package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creatorhub/internal/core/services"
	"creatorhub/internal/infrastructure/chat"
	"creatorhub/internal/infrastructure/distributed"
	"creatorhub/internal/infrastructure/middleware"
	"creatorhub/internal/infrastructure/monitoring"
	"creatorhub/internal/infrastructure/reliability"
	"creatorhub/internal/infrastructure/repositories"
	"creatorhub/pkg/circuitbreaker"
	"creatorhub/pkg/config"
	"creatorhub/pkg/logger"
	"creatorhub/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const presenceTTL = 2 * time.Minute

var configPaths = []string{
	"configs/config.yaml",
	"/etc/creatorhub/config.yaml",
	"config.yaml",
}

func main() {
	cfg, cfgPath, err := config.LoadFirst(configPaths...)
	if err != nil {
		logger.New("info", "json").Sugar().Fatalw("failed to load configuration", "error", err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()
	log.Infow("configuration loaded", "path", cfgPath)

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-chat",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)

	subscriptionRepo := reliability.NewSubscriptionRepositoryWrapper(
		repoFactory.SubscriptionRepository(),
		reliability.RetryConfig{Attempts: cfg.Store.RetryAttempts, Delay: cfg.Store.RetryDelay},
		circuitbreaker.Config{FailureThreshold: cfg.Store.BreakerThreshold, OpenDuration: cfg.Store.BreakerOpenDuration},
		collector,
		log.With("component", "subscription_store"),
	)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authorizer := services.NewSubscriptionAuthorizer(authService, subscriptionRepo, collector, log.With("component", "authorizer"))

	chatCfg := chat.Config{
		PingInterval:      cfg.Chat.PingInterval,
		PongTimeout:       cfg.Chat.PongTimeout,
		WriteTimeout:      cfg.Chat.WriteTimeout,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		Burst:             cfg.RateLimiting.WebSocket.Burst,
		MaxMessageSize:    cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		AllowedOrigins:    cfg.Auth.AllowedOrigins,
	}
	server := chat.NewServer(authService, authorizer, chatCfg, log.With("component", "chat")).WithMetrics(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if client := repoFactory.RedisClient(); client != nil {
		instanceID := uuid.NewString()
		bus := distributed.NewEventBus(client, instanceID, log.With("component", "event_bus"))
		presence := distributed.NewPresenceRegistry(client, instanceID, presenceTTL, log)
		server.WithRelay(bus, presence)

		go func() {
			if err := bus.Subscribe(ctx, server.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("event bus subscription ended", "error", err)
			}
		}()
		go server.RefreshPresence(ctx, presenceTTL/2)
		log.Infow("cross-instance relay enabled", "instance_id", instanceID)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatalw("invalid trusted proxies", "error", err)
	}
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)
	server.SetupRoutes(router)

	readiness := monitoring.NewHealthChecker()
	readiness.AddRepositoryCheck(subscriptionRepo, 2*time.Second)
	readiness.AddBreakerCheck(subscriptionRepo.BreakerState)
	if client := repoFactory.RedisClient(); client != nil {
		readiness.AddRedisCheck(client, 2*time.Second)
	}
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if !readiness.IsReady(ctx) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// No WriteTimeout: it would cut long-lived WebSocket connections.
	srv := &http.Server{
		Addr:              cfg.Chat.Address,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting creatorhub chat server", "address", cfg.Chat.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	cancel()
	server.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Chat.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		_ = srv.Close()
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer", "error", err)
	}

	log.Info("creatorhub chat server stopped")
}
