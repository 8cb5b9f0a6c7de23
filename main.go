package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/navarrastar/newsletter-signup/pkg/api"
	"github.com/navarrastar/newsletter-signup/pkg/clients/beehiiv"
	"github.com/navarrastar/newsletter-signup/pkg/clients/hubspot"
	"github.com/navarrastar/newsletter-signup/pkg/config"
	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/ratelimit"
	"github.com/navarrastar/newsletter-signup/pkg/services"
	"github.com/navarrastar/newsletter-signup/pkg/telemetry"
)

func main() {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalf("Error initializing telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("Error flushing traces: %v", err)
		}
	}()

	// Rate limit store: Redis when configured so replicas share one budget
	var store ratelimit.Store
	if cfg.RateLimitRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimitRedisAddr,
			Password: cfg.RateLimitRedisPassword,
			DB:       cfg.RateLimitRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			logger.Fatalf("Redis ping error: %v", err)
		}

		store = ratelimit.NewRedisStore(rdb, ratelimit.WithPrefix(cfg.RateLimitRedisPrefix))
		logger.Info("Rate limiting backed by Redis at %s", cfg.RateLimitRedisAddr)
	} else {
		store = ratelimit.NewMemoryStore()
		logger.Info("Rate limiting backed by in-process memory")
	}
	limiter := ratelimit.New(store,
		ratelimit.WithWindow(cfg.RateLimitWindow),
		ratelimit.WithMax(cfg.RateLimitMax),
	)

	// Initialize API clients
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	beehiivClient := beehiiv.NewClient(cfg.BeehiivAPIKey, cfg.BeehiivPublicationID,
		beehiiv.WithBaseURL(cfg.BeehiivBaseURL),
		beehiiv.WithHTTPClient(httpClient),
	)
	hubspotClient := hubspot.NewClient(cfg.HubSpotAccessToken,
		hubspot.WithBaseURL(cfg.HubSpotBaseURL),
		hubspot.WithHTTPClient(httpClient),
	)

	// Initialize services
	submissionService := services.NewSubmissionService(
		beehiivClient,
		hubspotClient,
		cfg.ProviderTimeout,
		logger,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	handlers := api.NewHandlers(submissionService, limiter, logger)
	router := api.NewRouter(handlers, logger, cfg.ServiceName)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2*cfg.ProviderTimeout + 10*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error during shutdown: %v", err)
		}
	}()

	logger.Info("Server starting on port %s (env=%s)", cfg.Port, cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Error starting server: %v", err)
	}
	logger.Info("Server stopped")
}
