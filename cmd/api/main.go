package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/counseldesk/gateway/internal/api/handlers"
	"github.com/counseldesk/gateway/internal/cache/redis"
	"github.com/counseldesk/gateway/internal/catalog"
	"github.com/counseldesk/gateway/internal/gateway"
	"github.com/counseldesk/gateway/internal/metrics"
	"github.com/counseldesk/gateway/internal/middleware/ratelimit"
	"github.com/counseldesk/gateway/internal/middleware/security"
	"github.com/counseldesk/gateway/internal/staleness"
	"github.com/counseldesk/gateway/internal/storage/sqlite"
	"github.com/counseldesk/gateway/internal/upstream"
	"github.com/counseldesk/gateway/internal/vectorstore"
	"github.com/counseldesk/gateway/pkg/circuitbreaker"
	"github.com/counseldesk/gateway/pkg/config"
	appLogger "github.com/counseldesk/gateway/pkg/logger"
	"github.com/counseldesk/gateway/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting CounselDesk gateway")

	metrics.Init()

	// The query log connection is acquired lazily on first use; a store
	// that cannot reach its backend degrades instead of blocking startup.
	store := sqlite.NewStore(cfg.SQLite.Path)
	defer store.Close()

	upstreamClient := upstream.NewClient(upstream.Options{
		APIKey:        cfg.Upstream.APIKey,
		APIKeyHeader:  cfg.Upstream.APIKeyHeader,
		KeyMode:       cfg.Upstream.APIKeyMode,
		KeyHostSuffix: cfg.Upstream.APIKeyHostSuffix,
	})

	scroller := vectorstore.NewClient(
		upstreamClient,
		cfg.VectorStore.BaseURL,
		cfg.VectorStore.Collection,
		cfg.VectorStore.PageLimit,
		time.Duration(cfg.VectorStore.PageTimeoutSec)*time.Second,
	)

	var snapshotCache catalog.SnapshotCache
	var invalidator staleness.CatalogInvalidator
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.CatalogTTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, catalog caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			snapshotCache = redisClient
			invalidator = redisClient
		}
	}

	pageRetry := retry.DefaultConfig()
	pageRetry.MaxAttempts = cfg.VectorStore.PageRetries + 1
	pageRetry.Logger = appLogger.Log
	aggregator := catalog.NewAggregator(scroller, snapshotCache, cfg.VectorStore.MaxPages, pageRetry)

	hub := handlers.NewActivityHub()
	policy := staleness.NewPolicy(store, invalidator, hub)

	var breaker *circuitbreaker.Breaker
	if cfg.Breaker.Enabled {
		breaker = circuitbreaker.New("ask-upstream", circuitbreaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         time.Duration(cfg.Breaker.CooldownSec) * time.Second,
			Logger:           appLogger.Log,
		})
	}

	svc := gateway.NewService(upstreamClient, store, policy, breaker, hub, gateway.Options{
		AskURL:        cfg.Upstream.AskURL,
		IngestURL:     cfg.Upstream.IngestURL,
		AskTimeout:    time.Duration(cfg.Upstream.AskTimeoutSec) * time.Second,
		IngestTimeout: time.Duration(cfg.Upstream.IngestTimeoutSec) * time.Second,
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:               appLogger.Log,
		})
		defer limiter.Stop()
		app.Use("/api", limiter.Middleware())
	}

	askHandler := handlers.NewAskHandler(svc)
	ingestHandler := handlers.NewIngestHandler(svc)
	feedbackHandler := handlers.NewFeedbackHandler(svc)
	memoryHandler := handlers.NewMemoryHandler(store)
	documentsHandler := handlers.NewDocumentsHandler(aggregator)

	app.Post("/api/ask", askHandler.HandleAsk)
	app.Post("/api/ingest", ingestHandler.HandleIngest)
	app.Post("/api/feedback", feedbackHandler.HandleFeedback)
	app.Get("/api/memory", memoryHandler.HandleMemory)
	app.Get("/api/documents", documentsHandler.HandleDocuments)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/activity", websocket.New(hub.HandleConnection))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
