package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/inventory-core/internal/checkout"
	"github.com/flashsale/inventory-core/internal/engine"
)

func newTestCheckoutHandler(t *testing.T) (*CheckoutHandler, *engine.Engine) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	eng := engine.New(rdb, engine.Config{
		TTL:              time.Minute,
		MaxQtyPerReserve: 10,
		IdempotencyTTL:   time.Minute,
	}, zerolog.Nop())

	co := checkout.New(eng, nil, nil, zerolog.Nop())
	return NewCheckoutHandler(co), eng
}

func TestCheckoutConfirmForbidden(t *testing.T) {
	h, eng := newTestCheckoutHandler(t)
	e := echo.New()
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)
	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 1, "")
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPost, "/v1/checkout/confirm",
		[]byte(`{"reservation_id":"`+res.ReservationID+`"}`),
		func(c echo.Context) { c.Set("user_id", "intruder") },
		h.Confirm, nil, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FORBIDDEN", body["error"])
}

func TestCheckoutConfirmNotFound(t *testing.T) {
	h, _ := newTestCheckoutHandler(t)
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/v1/checkout/confirm",
		[]byte(`{"reservation_id":"rsv_missing"}`),
		func(c echo.Context) { c.Set("user_id", "u1") },
		h.Confirm, nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutCancelSucceeds(t *testing.T) {
	h, eng := newTestCheckoutHandler(t)
	e := echo.New()
	ctx := context.Background()

	_, err := eng.Initialize(ctx, "FLASH-001", 5)
	require.NoError(t, err)
	res, err := eng.Reserve(ctx, "owner", "FLASH-001", 2, "")
	require.NoError(t, err)

	rec := doRequest(e, http.MethodPost, "/v1/checkout/cancel",
		[]byte(`{"reservation_id":"`+res.ReservationID+`"}`),
		func(c echo.Context) { c.Set("user_id", "owner") },
		h.Cancel, nil, nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	status, err := eng.Status(ctx, "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(5), status.Available)
}

// GetOrder always queries the orders table directly, so it has no path
// that can be exercised without a real MySQL connection; see the
// checkout package's test notes (no sqlmock-equivalent in the pack).
