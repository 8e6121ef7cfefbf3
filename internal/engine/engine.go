// Package engine implements the Reservation Engine (spec §4.C) and the
// Idempotency Layer (spec §4.D): the atomic check-and-decrement of SKU
// stock, the reservation record lifecycle, and fingerprint-keyed replay
// protection, all scripted against Redis the way the teacher's token-bucket
// rate limiter scripts its own counter (internal/middleware/ratelimit.go).
package engine

import (
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Engine owns every hot-state mutation for inventory counters, reservation
// records, and the expiry index. Checkout and the sweeper call back into it
// rather than touching Redis directly, per spec §3's ownership rule.
type Engine struct {
	rdb *redis.Client
	log zerolog.Logger

	ttl              time.Duration
	maxQtyPerReserve int
	idempotencyTTL   time.Duration
}

// Config bundles the tunables LoadReservationConfig produces.
type Config struct {
	TTL              time.Duration
	MaxQtyPerReserve int
	IdempotencyTTL   time.Duration
}

// New constructs an Engine bound to rdb.
func New(rdb *redis.Client, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		rdb:              rdb,
		log:              log.With().Str("component", "engine").Logger(),
		ttl:              cfg.TTL,
		maxQtyPerReserve: cfg.MaxQtyPerReserve,
		idempotencyTTL:   cfg.IdempotencyTTL,
	}
}

// Key layout, illustrative per spec §6 ("implementers may choose other
// shapes if properties hold").
func inventoryKey(sku string) string { return "inventory:" + sku }
func reservationKey(id string) string { return "reservation:" + id }
func idempotencyKey(userID, fingerprint string) string {
	return "idempotency:" + userID + ":" + fingerprint
}

// ExpiryIndexKey is exported so the sweeper can query the index directly
// with ZRANGEBYSCORE; only Engine ever writes to it.
const ExpiryIndexKey = "expiring_reservations"
const expiryIndexKey = ExpiryIndexKey
