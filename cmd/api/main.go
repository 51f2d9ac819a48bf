package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leafsii/feed-backend/internal/api"
	"github.com/leafsii/feed-backend/internal/comments"
	"github.com/leafsii/feed-backend/internal/config"
	gdb "github.com/leafsii/feed-backend/internal/db"
	"github.com/leafsii/feed-backend/internal/jobs"
	"github.com/leafsii/feed-backend/internal/karma"
	"github.com/leafsii/feed-backend/internal/likes"
	"github.com/leafsii/feed-backend/internal/log"
	"github.com/leafsii/feed-backend/internal/metrics"
	"github.com/leafsii/feed-backend/internal/posts"
	"github.com/leafsii/feed-backend/internal/store"
	"github.com/leafsii/feed-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting feed API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"db", cfg.Database.Type,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("feed-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Initialize database
	db, err := gdb.NewDatabase(&gdb.Config{
		Type:     cfg.Database.Type,
		DSN:      cfg.Database.PostgresDSN,
		MaxConns: cfg.Database.MaxConns,
	}, logger)
	if err != nil {
		logger.Fatalw("Failed to create database", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if cfg.Database.AutoMigrate {
		err = gdb.ConnectAndMigrate(ctx, db)
	} else {
		err = db.Connect(ctx)
	}
	if err != nil {
		logger.Fatalw("Failed to initialize database", "error", err)
	}
	defer db.Disconnect(context.Background())
	logger.Infow("Database initialized", "auto_migrate", cfg.Database.AutoMigrate)

	// Event bus; falls back to in-memory pub/sub without Redis
	bus, err := store.NewBus(cfg.Cache.RedisAddr, logger)
	if err != nil {
		logger.Fatalw("Failed to setup event bus", "error", err)
	}
	defer bus.Close()
	logger.Infow("Event bus ready", "in_memory", bus.IsInMemoryMode())

	// Setup services
	commentSvc := comments.NewService(db, bus, metricsObj, logger)
	postSvc := posts.NewService(db, commentSvc, logger)
	ledger := likes.NewLedger(db, bus, metricsObj, logger)
	aggregator := karma.NewAggregator(db, metricsObj, logger)

	// Setup WebSocket hub and SSE handler
	wsHub := ws.NewHub(bus, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(bus, cfg.Security.CORSAllowedOrigins, logger, metricsObj)

	// Create context for background services
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	go wsHub.Run(hubCtx)

	publisher := jobs.NewLeaderboardPublisher(aggregator, bus, logger, jobs.LeaderboardPublisherConfig{
		Interval: cfg.Leaderboard.PublishInterval,
		Window:   cfg.Leaderboard.Window,
		Limit:    cfg.Leaderboard.Limit,
	})
	go func() {
		if err := publisher.Start(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorw("Leaderboard publisher error", "error", err)
		}
	}()

	// Setup API handler and middleware
	handler := api.NewHandler(db, bus, postSvc, commentSvc, ledger, aggregator, wsHub, sseHandler, cfg, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// WriteTimeout stays unset so streams are not cut; handlers are bounded
	// by the router's timeout middleware
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		publisher.Stop()
		hubCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
