package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashsale/inventory-core/internal/engine"
)

func newTestInventoryHandler(t *testing.T) *InventoryHandler {
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
	return NewInventoryHandler(eng, nil)
}

func doRequest(e *echo.Echo, method, path string, body []byte, setCtx func(c echo.Context), handlerFn echo.HandlerFunc, paramNames []string, paramValues []string) *httptest.ResponseRecorder {
	return doRequestWithHeaders(e, method, path, body, nil, setCtx, handlerFn, paramNames, paramValues)
}

func doRequestWithHeaders(e *echo.Echo, method, path string, body []byte, headers map[string]string, setCtx func(c echo.Context), handlerFn echo.HandlerFunc, paramNames []string, paramValues []string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(paramNames...)
	c.SetParamValues(paramValues...)
	if setCtx != nil {
		setCtx(c)
	}
	_ = handlerFn(c)
	return rec
}

func TestInventoryInitializeAndStatus(t *testing.T) {
	h := newTestInventoryHandler(t)
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/v1/inventory/FLASH-001/initialize?quantity=10",
		nil, nil, h.Initialize, []string{"sku"}, []string{"FLASH-001"})
	require.Equal(t, http.StatusOK, rec.Code)

	var initBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initBody))
	assert.Equal(t, "FLASH-001", initBody["sku"])
	assert.Equal(t, float64(10), initBody["available"])

	rec = doRequest(e, http.MethodGet, "/v1/inventory/FLASH-001",
		nil, nil, h.Status, []string{"sku"}, []string{"FLASH-001"})
	require.Equal(t, http.StatusOK, rec.Code)

	var statusBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statusBody))
	assert.Equal(t, float64(10), statusBody["available"])
}

func TestInventoryReserveSuccessAndInsufficient(t *testing.T) {
	h := newTestInventoryHandler(t)
	e := echo.New()

	_, err := h.Engine.Initialize(context.Background(), "FLASH-001", 1)
	require.NoError(t, err)

	setUser := func(c echo.Context) { c.Set("user_id", "u1") }

	rec := doRequest(e, http.MethodPost, "/v1/inventory/reserve",
		[]byte(`{"sku":"FLASH-001","quantity":1}`), setUser, h.Reserve, nil, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(e, http.MethodPost, "/v1/inventory/reserve",
		[]byte(`{"sku":"FLASH-001","quantity":1}`), setUser, h.Reserve, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INSUFFICIENT", body["error"])
	assert.Equal(t, float64(0), body["available"])
}

func TestInventoryInitializeRejectsNonIntegerQuantity(t *testing.T) {
	h := newTestInventoryHandler(t)
	e := echo.New()

	rec := doRequest(e, http.MethodPost, "/v1/inventory/FLASH-001/initialize?quantity=not-a-number",
		nil, nil, h.Initialize, []string{"sku"}, []string{"FLASH-001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryReserveIdempotencyKeyHeaderDeduplicates(t *testing.T) {
	h := newTestInventoryHandler(t)
	e := echo.New()

	_, err := h.Engine.Initialize(context.Background(), "FLASH-001", 5)
	require.NoError(t, err)

	setUser := func(c echo.Context) { c.Set("user_id", "u1") }
	headers := map[string]string{"X-Idempotency-Key": "client-token-a"}

	first := doRequestWithHeaders(e, http.MethodPost, "/v1/inventory/reserve",
		[]byte(`{"sku":"FLASH-001","quantity":2}`), headers, setUser, h.Reserve, nil, nil)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doRequestWithHeaders(e, http.MethodPost, "/v1/inventory/reserve",
		[]byte(`{"sku":"FLASH-001","quantity":2}`), headers, setUser, h.Reserve, nil, nil)
	require.Equal(t, http.StatusCreated, second.Code)

	var firstBody, secondBody map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstBody))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondBody))
	assert.Equal(t, firstBody["reservation_id"], secondBody["reservation_id"])

	status, err := h.Engine.Status(context.Background(), "FLASH-001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.Available, "a replayed idempotency key must not decrement twice")
}

func TestInventoryReserveNotInitializedMapsTo409(t *testing.T) {
	h := newTestInventoryHandler(t)
	e := echo.New()
	setUser := func(c echo.Context) { c.Set("user_id", "u1") }

	rec := doRequest(e, http.MethodPost, "/v1/inventory/reserve",
		[]byte(`{"sku":"NEVER-INITIALIZED","quantity":1}`), setUser, h.Reserve, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_INITIALIZED", body["error"])
}
