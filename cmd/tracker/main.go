package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/orbitl/email-tracker/internal/api"
	"github.com/orbitl/email-tracker/internal/config"
	"github.com/orbitl/email-tracker/internal/pkg/logger"
	"github.com/orbitl/email-tracker/internal/signer"
	"github.com/orbitl/email-tracker/internal/stats"
	"github.com/orbitl/email-tracker/internal/store"
	"github.com/orbitl/email-tracker/internal/store/memory"
	"github.com/orbitl/email-tracker/internal/store/postgres"
	"github.com/orbitl/email-tracker/internal/tracking"
	"github.com/orbitl/email-tracker/internal/tracklink"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	if cfg.Tracking.SigningSecret == "" {
		logger.Error("TRACK_SECRET is required")
		os.Exit(1)
	}
	if cfg.Tracking.BaseURL == "" {
		logger.Error("APP_BASE is required")
		os.Exit(1)
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiting disabled", "addr", cfg.Redis.Addr, "error", err)
			redisClient = nil
		}
		cancel()
	}

	var rec tracking.Recorder
	if cfg.Tracking.QueueURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			logger.Error("failed to load aws config", "error", err)
			os.Exit(1)
		}
		rec = tracking.NewPublisher(sqs.NewFromConfig(awsCfg), cfg.Tracking.QueueURL)
		logger.Info("event recording via SQS", "queue", cfg.Tracking.QueueURL)
	} else {
		rec = tracking.NewStoreRecorder(st)
		logger.Info("event recording in-process")
	}

	sg := signer.New(cfg.Tracking.SigningSecret)
	enc := tracklink.NewEncoder(cfg.Tracking.BaseURL, sg)
	track := tracking.NewHandler(sg, st, rec, tracking.Config{
		PixelFormat:     cfg.Tracking.PixelFormat,
		DefaultRedirect: cfg.Tracking.DefaultRedirect,
		LookupTimeout:   cfg.Tracking.LookupTimeout(),
	})
	handlers := api.NewHandlers(st, stats.New(st), enc)

	router := api.SetupRoutes(handlers, track, api.RouterConfig{
		AllowedOrigins:     cfg.Dashboard.AllowedOrigins,
		Redis:              redisClient,
		TrackRatePerMinute: cfg.Redis.TrackRatePerMinute,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tracker listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down tracker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Drain in-flight event writes before the store closes.
	rec.Wait()
}

// openStore picks Postgres when DATABASE_URL is set and an in-memory
// store otherwise. The in-memory fallback keeps local development
// usable without a database; events do not survive a restart.
func openStore(cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	return postgres.New(db), func() { db.Close() }, nil
}
