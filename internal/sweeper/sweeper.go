// Package sweeper implements the Expiry Sweeper (spec §4.E): a background
// task that, on a fixed cadence, pops due entries from the expiry index and
// finalises them through the Reservation Engine.
package sweeper

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/flashsale/inventory-core/internal/apperr"
	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/engine"
)

// Sweeper runs Tick on a fixed interval until its context is cancelled.
// Restart-safety comes for free: the expiry index is the only source of
// truth for due entries, so a fresh process just queries it again and
// catches up on everything with score <= now.
type Sweeper struct {
	rdb       *redis.Client
	engine    *engine.Engine
	publisher *audit.Publisher
	log       zerolog.Logger

	interval  time.Duration
	batchSize int64
}

func New(rdb *redis.Client, eng *engine.Engine, publisher *audit.Publisher, interval time.Duration, batchSize int64, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		rdb:       rdb,
		engine:    eng,
		publisher: publisher,
		log:       log.With().Str("component", "sweeper").Logger(),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run ticks until ctx is cancelled, following the teacher's
// queue.StartBookingConsumer loop-until-cancelled shape, generalized from a
// connection retry loop to a fixed-cadence poll loop.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Warn().Err(err).Msg("sweep tick failed")
			}
		}
	}
}

// Tick performs a single sweep: query due entries, capped at batchSize
// (spec §4.E step 4), and expire each one through the Engine.
func (s *Sweeper) Tick(ctx context.Context) error {
	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC().UnixMilli()
	due, err := s.rdb.ZRangeByScore(tickCtx, engine.ExpiryIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: s.batchSize,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range due {
		s.expireOne(ctx, id)
	}
	return nil
}

func (s *Sweeper) expireOne(ctx context.Context, reservationID string) {
	rec, err := s.engine.Expire(ctx, reservationID)
	if err != nil {
		if appErr, ok := apperr.As(err); ok && appErr.Kind == apperr.KindAlreadyTerminal {
			// Benign race with confirm/cancel (spec §4.E step 3).
			return
		}
		s.log.Warn().Err(err).Str("reservation_id", reservationID).Msg("expire failed")
		return
	}

	s.log.Info().Str("reservation_id", reservationID).Str("sku", rec.SKU).Msg("reservation expired by sweeper")

	if s.publisher != nil {
		go s.publisher.Publish(context.Background(), audit.Event{
			Type:          audit.EventExpire,
			ReservationID: reservationID,
			SKU:           rec.SKU,
			Quantity:      rec.Quantity,
			UserID:        rec.UserID,
			OccurredAt:    time.Now().UTC(),
		})
	}
}
