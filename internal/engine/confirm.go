package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// ConsumeForCheckout performs the optimistic atomic delete the Checkout
// Coordinator needs (spec §4.F step 3): observe the reservation record,
// then delete it and drop its expiry-index entry inside a WATCH/MULTI
// transaction. If the sweeper deletes the same key first, the transaction
// aborts and the caller gets NOT_FOUND rather than a stale confirm. The
// counter is deliberately left untouched here — confirm sells the units,
// it does not release them (spec §4.F "crucial invariant").
func (e *Engine) ConsumeForCheckout(ctx context.Context, userID, reservationID string) (ReservationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := reservationKey(reservationID)
	var rec ReservationRecord

	err := e.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return apperr.New(apperr.KindNotFound, "reservation not found", nil)
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return err
		}
		if rec.UserID != userID {
			return apperr.New(apperr.KindForbidden, "reservation belongs to a different user", nil)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, expiryIndexKey, reservationID)
			return nil
		})
		return err
	}, key)

	if err != nil {
		if appErr, ok := apperr.As(err); ok {
			return ReservationRecord{}, appErr
		}
		if err == redis.TxFailedErr {
			return ReservationRecord{}, apperr.New(apperr.KindNotFound, "reservation was already finalized", nil)
		}
		return ReservationRecord{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	rec.Status = StatusConfirmed
	return rec, nil
}
