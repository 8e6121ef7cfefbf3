package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/flashsale/inventory-core/internal/apperr"
	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/engine"
)

// InventoryHandler bundles the Reservation Engine for the inventory/reserve
// surface (spec §4.C operations exposed over HTTP).
type InventoryHandler struct {
	Engine    *engine.Engine
	Publisher *audit.Publisher
}

func NewInventoryHandler(e *engine.Engine, publisher *audit.Publisher) *InventoryHandler {
	return &InventoryHandler{Engine: e, Publisher: publisher}
}

// Initialize sets a SKU's counter; gated to ADMIN by the router. Quantity
// arrives as the `quantity` query parameter per spec §6
// (`POST /v1/inventory/{sku}/initialize?quantity=N`).
func (h *InventoryHandler) Initialize(c echo.Context) error {
	sku := c.Param("sku")
	quantity, err := strconv.ParseInt(c.QueryParam("quantity"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be an integer"})
	}

	available, err := h.Engine.Initialize(c.Request().Context(), sku, quantity)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sku": sku, "available": available})
}

// Status returns current availability for a SKU.
func (h *InventoryHandler) Status(c echo.Context) error {
	sku := c.Param("sku")
	result, err := h.Engine.Status(c.Request().Context(), sku)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type reserveReq struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

// Reserve is the hot path: atomic check-and-decrement plus reservation
// record creation (spec §4.C `reserve`). The idempotency fingerprint is
// the optional `X-Idempotency-Key` header per spec §6, not a body field.
func (h *InventoryHandler) Reserve(c echo.Context) error {
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	userID := requestUserID(c)
	fingerprint := c.Request().Header.Get("X-Idempotency-Key")

	result, err := h.Engine.Reserve(c.Request().Context(), userID, req.SKU, req.Quantity, fingerprint)
	if err != nil {
		h.publishOversellBlocked(req.SKU, req.Quantity, userID, err)
		return respondErr(c, err)
	}

	h.publishReserved(result, userID)
	return c.JSON(http.StatusCreated, result)
}

func (h *InventoryHandler) publishReserved(result engine.ReserveResult, userID string) {
	if h.Publisher == nil {
		return
	}
	go h.Publisher.Publish(context.Background(), audit.Event{
		Type:          audit.EventReserve,
		ReservationID: result.ReservationID,
		SKU:           result.SKU,
		Quantity:      result.Quantity,
		UserID:        userID,
		OccurredAt:    time.Now().UTC(),
	})
}

func (h *InventoryHandler) publishOversellBlocked(sku string, quantity int64, userID string, err error) {
	if h.Publisher == nil {
		return
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindInsufficient {
		return
	}
	go h.Publisher.Publish(context.Background(), audit.Event{
		Type:       audit.EventOversellBlocked,
		SKU:        sku,
		Quantity:   quantity,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
}
