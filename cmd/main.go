package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/server"
	"github.com/suteetoe/restohub/internal/tenancy"
	"github.com/suteetoe/restohub/pkg/config"
	"github.com/suteetoe/restohub/pkg/database"
	"github.com/suteetoe/restohub/pkg/jwtutil"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/pkg/ratelimit"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
)

const serviceName = "restohub"

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting restohub API...", cfg.LogConfig()...)

	// Initialize Prometheus metrics
	prometheus.InitMetrics(cfg.Metrics.Prefix)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateModels(db, model.All()...); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	signingKey, err := jwtutil.LoadSigningKey(cfg.JWT.SigningKeyFile, cfg.JWT.SigningKey)
	if err != nil {
		log.Fatal("Failed to load JWT signing key", zap.Error(err))
	}
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      signingKey,
		Issuer:          cfg.JWT.Issuer,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})

	// Rate limiter - Redis when configured, bounded in-process map otherwise
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxKeys: cfg.RateLimit.MaxKeys})
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Warn("Redis unavailable, using in-memory rate limiter", zap.Error(err))
		} else {
			defer client.Close()
			limiter = ratelimit.NewRedisLimiter(client, serviceName+":ratelimit:")
			log.Info("Redis rate limiter enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Order events - NATS when configured
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		pub, nc, err := events.Connect(cfg.NATS.URL, serviceName, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Warn("NATS unavailable, order events disabled", zap.Error(err))
		} else {
			defer nc.Drain()
			publisher = pub
			log.Info("NATS publisher enabled", zap.String("url", cfg.NATS.URL))
		}
	}

	sink := audit.NewSink(db, cfg.Audit.QueueSize)

	e := server.New(server.Deps{
		Config:      cfg,
		DB:          db,
		JWT:         jwtUtil,
		Authorizer:  authz.NewAuthorizer(authz.DefaultTable()),
		Restaurants: tenancy.NewRestaurantCache(db, cfg.Cache.RestaurantTTL),
		Limiter:     limiter,
		Audit:       sink,
		Events:      publisher,
	})

	// Start server
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	if err := sink.Close(ctx); err != nil {
		log.Error("Audit sink did not drain", zap.Error(err))
	}
	log.Info("Server stopped")
}
