package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// Reserve is the hot path (spec §4.C `reserve`). When fingerprint is
// non-empty it is first routed through the Idempotency Layer (spec §4.D);
// otherwise it runs reserveScript directly.
func (e *Engine) Reserve(ctx context.Context, userID, sku string, quantity int64, fingerprint string) (ReserveResult, error) {
	if userID == "" || sku == "" {
		return ReserveResult{}, apperr.New(apperr.KindInvalidInput, "user_id and sku are required", nil)
	}
	if quantity < 1 || quantity > int64(e.maxQtyPerReserve) {
		return ReserveResult{}, apperr.New(apperr.KindInvalidInput, "quantity out of range", map[string]any{
			"max_quantity_per_reservation": e.maxQtyPerReserve,
		})
	}

	if fingerprint != "" {
		return e.reserveIdempotent(ctx, userID, sku, quantity, fingerprint)
	}
	return e.reserveOnce(ctx, userID, sku, quantity)
}

// reserveOnce performs the atomic check-and-decrement with no idempotency
// bookkeeping (spec §4.C steps 2-6 as a single scripted unit).
func (e *Engine) reserveOnce(ctx context.Context, userID, sku string, quantity int64) (ReserveResult, error) {
	id, err := newReservationID()
	if err != nil {
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(e.ttl)
	rec := ReservationRecord{
		ID:        id,
		SKU:       sku,
		Quantity:  quantity,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Status:    StatusActive,
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	scriptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res, err := reserveScript.Run(scriptCtx, e.rdb,
		[]string{inventoryKey(sku), reservationKey(id), expiryIndexKey},
		quantity, string(recJSON), expiresAt.UnixMilli(),
	).Slice()
	if err != nil {
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	code, _ := res[0].(int64)
	switch code {
	case -1:
		return ReserveResult{}, apperr.New(apperr.KindNotInitialized, "sku has not been initialized", nil)
	case 0:
		available, _ := res[1].(int64)
		return ReserveResult{}, apperr.Insufficient(available)
	case 1:
		e.log.Info().Str("sku", sku).Str("reservation_id", id).Str("user_id", userID).
			Int64("quantity", quantity).Msg("reserve succeeded")
		return ReserveResult{
			ReservationID: id,
			SKU:           sku,
			Quantity:      quantity,
			ExpiresAt:     expiresAt,
			TTLSeconds:    int64(e.ttl / time.Second),
		}, nil
	default:
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, "unexpected script result", nil)
	}
}
