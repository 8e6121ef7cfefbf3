package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/flashsale/inventory-core/internal/checkout"
)

// CheckoutHandler bundles the Checkout Coordinator for the
// confirm/cancel/order-read surface (spec §4.F).
type CheckoutHandler struct {
	Coordinator *checkout.Coordinator
}

func NewCheckoutHandler(co *checkout.Coordinator) *CheckoutHandler {
	return &CheckoutHandler{Coordinator: co}
}

type confirmReq struct {
	ReservationID string `json:"reservation_id"`
}

// Confirm turns a live reservation into a durable order.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	userID := requestUserID(c)
	order, err := h.Coordinator.Confirm(c.Request().Context(), userID, req.ReservationID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, order)
}

type cancelReq struct {
	ReservationID string `json:"reservation_id"`
}

// Cancel releases a reservation's units back to the counter.
func (h *CheckoutHandler) Cancel(c echo.Context) error {
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	userID := requestUserID(c)
	if err := h.Coordinator.Cancel(c.Request().Context(), userID, req.ReservationID); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetOrder reads back a confirmed order.
func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	orderID := c.Param("order_id")
	order, err := h.Coordinator.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, order)
}
