// Command sweeper runs the Expiry Sweeper as its own process, separate from
// the HTTP server, per the reservation core's component design: the sweeper
// only needs a Redis connection and (for audit events) an AMQP connection,
// and scaling it independently of the request-serving fleet is the point.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/config"
	"github.com/flashsale/inventory-core/internal/engine"
	"github.com/flashsale/inventory-core/internal/redisclient"
	"github.com/flashsale/inventory-core/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "inventory-sweeper").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.New(ctx)
	if err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}
	defer rdb.Close()

	publisher := audit.NewPublisher(cfg.AMQPURL, logger)
	defer publisher.Close()

	eng := engine.New(rdb, engine.Config{
		TTL:              cfg.Reservation.TTL,
		MaxQtyPerReserve: cfg.Reservation.MaxQtyPerReserve,
		IdempotencyTTL:   cfg.Reservation.IdempotencyTTL,
	}, logger)

	sw := sweeper.New(rdb, eng, publisher, cfg.Reservation.SweeperInterval, cfg.Reservation.SweeperBatchSize, logger)

	logger.Info().Dur("interval", cfg.Reservation.SweeperInterval).Int64("batch_size", cfg.Reservation.SweeperBatchSize).Msg("sweeper starting")
	sw.Run(ctx)
	logger.Info().Msg("sweeper stopped")
}
