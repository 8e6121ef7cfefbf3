package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/inventory-core/internal/apperr"
)

func newTestEngine(t *testing.T) (*Engine, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	eng := New(rdb, Config{
		TTL:              200 * time.Millisecond,
		MaxQtyPerReserve: 5,
		IdempotencyTTL:   time.Second,
	}, zerolog.Nop())
	return eng, rdb
}

func TestInitializeAndStatus(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	available, err := eng.Initialize(ctx, "FLASH-001", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), available)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, StatusResult{SKU: "FLASH-001", Available: 10}, status)
}

func TestStatusUninitialized(t *testing.T) {
	eng, _ := newTestEngine(t)
	status, err := eng.Status(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.True(t, status.Uninitialized)
	assert.Equal(t, int64(0), status.Available)
}

func TestReserveNotInitialized(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Reserve(context.Background(), "u1", "FLASH-001", 1, "")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotInitialized, appErr.Kind)
}

func TestReserveSuccessDecrementsCounter(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	res, err := eng.Reserve(ctx, "u1", "FLASH-001", 2, "")
	require.NoError(t, err)
	assert.Equal(t, "FLASH-001", res.SKU)
	assert.Equal(t, int64(2), res.Quantity)
	assert.Contains(t, res.ReservationID, "rsv_")

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Available)
}

func TestReserveInsufficientStock(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 1)
	require.NoError(t, err)

	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 2, "")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInsufficient, appErr.Kind)
	assert.Equal(t, int64(1), appErr.Detail["available"])
}

func TestReserveRejectsOverMaxQuantity(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 100)
	require.NoError(t, err)

	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 6, "")
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindInvalidInput, appErr.Kind)
}

// TestReserveConcurrentSingleUnit asserts exactly one winner when many
// goroutines race over a single unit of stock, exercising the atomic
// check-and-decrement guarantee the Lua script provides.
func TestReserveConcurrentSingleUnit(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 1)
	require.NoError(t, err)

	const workers = 120
	var successes int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := eng.Reserve(ctx, "u1", "FLASH-001", 1, "")
			if err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)
	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Available)
}

func TestReserveIdempotentFingerprintReplays(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	first, err := eng.Reserve(ctx, "u1", "FLASH-001", 2, "client-token-a")
	require.NoError(t, err)

	second, err := eng.Reserve(ctx, "u1", "FLASH-001", 2, "client-token-a")
	require.NoError(t, err)

	assert.Equal(t, first.ReservationID, second.ReservationID)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Available, "a replayed fingerprint must not decrement twice")
}

func TestCancelRestoresStockAndEnforcesOwnership(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 2, "")
	require.NoError(t, err)

	_, err = eng.Cancel(ctx, "someone-else", res.ReservationID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindForbidden, appErr.Kind)

	rec, err := eng.Cancel(ctx, "owner", res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rec.Status)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Available)

	_, err = eng.Cancel(ctx, "owner", res.ReservationID)
	appErr, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAlreadyTerminal, appErr.Kind)
}

func TestExpireRestoresStockAndIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 2, "")
	require.NoError(t, err)

	rec, err := eng.Expire(ctx, res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, rec.Status)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Available)

	// A second expire on an already-terminated id is a benign no-op.
	_, err = eng.Expire(ctx, res.ReservationID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAlreadyTerminal, appErr.Kind)
}

func TestConsumeForCheckoutDoesNotRestoreStock(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 2, "")
	require.NoError(t, err)

	rec, err := eng.ConsumeForCheckout(ctx, "owner", res.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, rec.Status)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Available, "confirm sells the units; it must not restore them")

	_, err = eng.ConsumeForCheckout(ctx, "owner", res.ReservationID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

// TestConfirmVersusExpireExactlyOneWins races ConsumeForCheckout against
// Expire on the same reservation id, as happens when the sweeper wakes up
// in the gap between a client reading its reservation and confirming it.
// Exactly one side must succeed; the other must see a terminal state, and
// stock must never be restored twice.
func TestConfirmVersusExpireExactlyOneWins(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)

	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 2, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var confirmErr, expireErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, confirmErr = eng.ConsumeForCheckout(ctx, "owner", res.ReservationID)
	}()
	go func() {
		defer wg.Done()
		_, expireErr = eng.Expire(ctx, res.ReservationID)
	}()
	wg.Wait()

	confirmWon := confirmErr == nil
	expireWon := expireErr == nil
	assert.True(t, confirmWon != expireWon, "exactly one of confirm/expire must win")

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	if confirmWon {
		assert.Equal(t, int64(3), status.Available, "confirm winning must not restore stock")
	} else {
		assert.Equal(t, int64(5), status.Available, "expire winning must restore stock")
	}
}
