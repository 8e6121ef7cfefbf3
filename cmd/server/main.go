package main // Entry point package

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv" // loads .env into the process environment
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/checkout"
	"github.com/flashsale/inventory-core/internal/config"
	"github.com/flashsale/inventory-core/internal/database"
	"github.com/flashsale/inventory-core/internal/database/migrations"
	"github.com/flashsale/inventory-core/internal/engine"
	"github.com/flashsale/inventory-core/internal/handler"
	"github.com/flashsale/inventory-core/internal/middleware"
	"github.com/flashsale/inventory-core/internal/redisclient"
	"github.com/flashsale/inventory-core/internal/repository"
	"github.com/flashsale/inventory-core/internal/router"
	"github.com/flashsale/inventory-core/internal/sweeper"
)

func main() {
	_ = godotenv.Load() // best-effort; real deployments set env vars directly

	cfg := config.Load() // Load environment config

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "inventory-core").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.New(ctx)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer rdb.Close()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql connect failed: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}

	publisher := audit.NewPublisher(cfg.AMQPURL, logger)
	defer publisher.Close()

	eng := engine.New(rdb, engine.Config{
		TTL:              cfg.Reservation.TTL,
		MaxQtyPerReserve: cfg.Reservation.MaxQtyPerReserve,
		IdempotencyTTL:   cfg.Reservation.IdempotencyTTL,
	}, logger)

	coordinator := checkout.New(eng, db, publisher, logger)

	sw := sweeper.New(rdb, eng, publisher, cfg.Reservation.SweeperInterval, cfg.Reservation.SweeperBatchSize, logger)
	go sw.Run(ctx)

	go func() {
		if err := audit.StartConsumer(ctx, cfg.AMQPURL, db, logger); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("audit consumer stopped")
		}
	}()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	invHandler := handler.NewInventoryHandler(eng, publisher)
	checkoutHandler := handler.NewCheckoutHandler(coordinator)

	e := echo.New()
	e.Use(middleware.RequestID())
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterInventory(e, invHandler, checkoutHandler, cfg.JWTSecret, rdb, config.LoadRateLimitConfig(), config.LoadCacheConfig())

	addr := ":" + cfg.Port // Address string with port
	logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")

	go func() {
		if err := e.Start(addr); err != nil {
			logger.Info().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
}
