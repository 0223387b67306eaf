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

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-dispatch/internal/auth"
	"ms-dispatch/internal/config"
	"ms-dispatch/internal/database/migrations"
	"ms-dispatch/internal/kafka"
	ledger_db "ms-dispatch/internal/ledger/db"
	"ms-dispatch/internal/ledger/ledger_api"
	"ms-dispatch/internal/ledger/qr"
	ledger_redis "ms-dispatch/internal/ledger/redis"
	"ms-dispatch/internal/ledger/service"
	"ms-dispatch/internal/logger"
	"ms-dispatch/internal/reports"
	reports_api "ms-dispatch/internal/reports/api"
	"ms-dispatch/internal/sse"
	"ms-dispatch/internal/utils"
	"ms-dispatch/internal/vehicles"
	vehicles_api "ms-dispatch/internal/vehicles/api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Dispatch Office Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()

	if err := utils.SetBusinessTimezone(cfg.Business.Timezone); err != nil {
		logger.Warn("CONFIG", fmt.Sprintf("Invalid BUSINESS_TIMEZONE %q, falling back to UTC: %v", cfg.Business.Timezone, err))
	} else {
		logger.Info("CONFIG", fmt.Sprintf("Business timezone set to %s", cfg.Business.Timezone))
	}

	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	migrateOpts := migrations.DefaultOptions()
	migrateOpts.SeedData = os.Getenv("SEED_DATA") == "true"
	migrator := migrations.NewRunner(bunDB, migrateOpts)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	defer migrator.Close()

	var publisher service.TokenPublisher
	var consumer *kafka.Consumer
	emitter := sse.NewTokenEventEmitter()

	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All()); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")

		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), cfg.Kafka.GroupID)
		defer consumer.Close()
		consumer.Start(ctx, emitter.EmitTokenEvent)
		logger.Info("KAFKA", "Kafka consumer feeding the live token board")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, token events will not be streamed")
	}

	ledgerService := service.NewLedgerService(
		ledger_db.NewDB(bunDB),
		ledger_redis.NewRedis(redisClient),
		publisher,
		logger,
	)
	reportsService := reports.NewService(bunDB)
	vehicleStore := vehicles.NewStore(bunDB)
	qrGenerator := qr.NewQRGenerator(cfg.QR.SecretKey)

	ledgerHandler := ledger_api.NewHandler(ledgerService, qrGenerator, logger)
	reportsHandler := reports_api.NewHandler(reportsService, logger)
	vehiclesHandler := vehicles_api.NewHandler(vehicleStore, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.Options{
			Issuer:   cfg.Auth.OIDCIssuer,
			Disabled: cfg.Auth.Disabled,
			Cache:    auth.NewRedisTokenCache(redisClient),
		}))
		logger.Info("AUTH", "Auth middleware applied to protected API routes")

		r.Route("/api", func(r chi.Router) {
			r.Route("/tokens", func(r chi.Router) {
				r.Get("/", reportsHandler.ListTokens)
				r.Post("/", ledgerHandler.CreateToken)
				r.Post("/checkout", ledgerHandler.CheckoutToken)
				r.Get("/{tokenID}", ledgerHandler.ViewToken)
				r.Patch("/{tokenID}", ledgerHandler.UpdateToken)
				r.Delete("/{tokenID}", ledgerHandler.DeleteToken)
				r.Get("/{tokenID}/qr", ledgerHandler.TokenQR)
				r.Post("/{tokenID}/load", ledgerHandler.MarkLoaded)
			})
			logger.Info("ROUTER", "Token routes registered under /api/tokens")

			reportsHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Report routes registered under /api/reports")

			vehiclesHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Catalogue routes registered under /api/vehicles and /api/rates")

			r.Get("/live/tokens", emitter.StreamHandler)
			logger.Info("ROUTER", "Live token board registered at /api/live/tokens")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Dispatch Office Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Dispatch Office Service shutdown complete")
	}
}
