package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/inventory-core/internal/engine"
)

func newTestSweeper(t *testing.T, batchSize int64) (*Sweeper, *engine.Engine, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	eng := engine.New(rdb, engine.Config{
		TTL:              20 * time.Millisecond,
		MaxQtyPerReserve: 10,
		IdempotencyTTL:   time.Minute,
	}, zerolog.Nop())

	sw := New(rdb, eng, nil, time.Hour, batchSize, zerolog.Nop())
	return sw, eng, rdb
}

func TestTickExpiresDueReservationsAndRestoresStock(t *testing.T) {
	sw, eng, _ := newTestSweeper(t, 10)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)
	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 2, "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sw.Tick(ctx))

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Available)
}

func TestTickIgnoresReservationsNotYetDue(t *testing.T) {
	sw, eng, _ := newTestSweeper(t, 10)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)
	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 2, "")
	require.NoError(t, err)

	require.NoError(t, sw.Tick(ctx))

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Available, "a reservation whose TTL hasn't elapsed must survive a sweep")
}

func TestTickRespectsBatchSizeCap(t *testing.T) {
	sw, eng, rdb := newTestSweeper(t, 1)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 10)
	require.NoError(t, err)
	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 1, "")
	require.NoError(t, err)
	_, err = eng.Reserve(ctx, "u1", "FLASH-001", 1, "")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, sw.Tick(ctx))

	remaining, err := rdb.ZCard(ctx, engine.ExpiryIndexKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining, "a batch-size-1 tick must leave one due entry unswept")

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(9), status.Available)
}

func TestExpireOneSwallowsAlreadyTerminal(t *testing.T) {
	sw, eng, _ := newTestSweeper(t, 10)
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)
	res, err := eng.Reserve(ctx, "u1", "FLASH-001", 2, "")
	require.NoError(t, err)

	_, err = eng.Cancel(ctx, "u1", res.ReservationID)
	require.NoError(t, err)

	// The reservation is already gone (cancelled); a sweeper racing it must
	// not panic or log it as a failure.
	assert.NotPanics(t, func() {
		sw.expireOne(ctx, res.ReservationID)
	})

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Available)
}
