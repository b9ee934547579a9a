package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-pos-ledger/internal/ai"
	"go-pos-ledger/internal/auth"
	"go-pos-ledger/internal/config"
	"go-pos-ledger/internal/database"
	"go-pos-ledger/internal/events"
	"go-pos-ledger/internal/handlers"
	"go-pos-ledger/internal/idempotency"
	"go-pos-ledger/internal/images"
	"go-pos-ledger/internal/inventory"
	"go-pos-ledger/internal/ledger"
	"go-pos-ledger/internal/middleware"
	"go-pos-ledger/internal/observability"
	"go-pos-ledger/internal/reports"
	"go-pos-ledger/internal/sales"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownOtel, err := observability.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("otel setup: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	if observability.Enabled(cfg) {
		logger = observability.WithOTelBridge(cfg.LogLevel)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		LogLevel: cfg.DBLogLevel,
	}, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// --- Services ---
	users := auth.NewDirectory(db)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	writer := ledger.NewWriter(db)
	inv := inventory.NewService(db, writer, logger.Named("inventory"))
	saleRecords := sales.NewRepository(db)
	engine := reports.NewEngine(db, saleRecords, cfg.Location)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBroker != "" {
		kp, err := events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, otel.GetTracerProvider())
		if err != nil {
			logger.Fatal("kafka publisher", zap.Error(err))
		}
		publisher = kp
		logger.Info("publishing sale events", zap.String("broker", cfg.KafkaBroker), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	var guard idempotency.Guard = idempotency.NewMemoryGuard(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, idempotency keys kept in memory", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			guard = idempotency.NewRedisGuard(rdb, cfg.IdempotencyTTL)
		}
	}

	h := &handlers.Handler{
		Users:       users,
		Tokens:      tokens,
		Inventory:   inv,
		Sales:       sales.NewService(writer, saleRecords, users, publisher, logger.Named("sales")),
		SaleRecords: saleRecords,
		Reports:     engine,
		Images:      images.NewStore(db, cfg.UploadDir, "/uploads", logger.Named("images")),
		Agent:       ai.NewAgent(cfg.GeminiAPIKey, ai.NewTools(inv, engine, cfg.Location), cfg.Location),
		Idempotency: guard,
		Log:         logger,
	}

	// --- Router ---
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handlers.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Static("/uploads", cfg.UploadDir)
	h.Mount(r, cfg.AllowRegistration)

	// --- FEATURE FLAG: Admin Registration ---
	if cfg.AllowRegistration {
		logger.Warn("registration route is OPEN, disable this in production")
	} else {
		logger.Info("registration route is disabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.HTTPAddr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownOtel(shutdownCtx); err != nil {
		logger.Error("otel shutdown", zap.Error(err))
	}
}
