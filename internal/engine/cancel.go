package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// Cancel terminates a reservation on behalf of the owning user, restoring
// its quantity to the counter (spec §4.C `cancel`). A reservation owned by
// someone else is reported as FORBIDDEN rather than ALREADY_TERMINAL so
// callers can distinguish "not yours" from "already gone".
func (e *Engine) Cancel(ctx context.Context, userID, reservationID string) (ReservationRecord, error) {
	return e.terminate(ctx, reservationID, userID)
}

// Expire terminates a reservation unconditionally, restoring its quantity to
// the counter (spec §4.C `expire` / §5 sweeper path). It is safe to call on
// an already-terminated reservation; callers should treat ALREADY_TERMINAL
// as a no-op, since confirm and expire racing is expected and exactly one of
// them must win.
func (e *Engine) Expire(ctx context.Context, reservationID string) (ReservationRecord, error) {
	return e.terminate(ctx, reservationID, "")
}

// terminate runs terminateScript with requestingUser == "" meaning "skip
// the ownership check" (the expire path).
func (e *Engine) terminate(ctx context.Context, reservationID, requestingUser string) (ReservationRecord, error) {
	scriptCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// KEYS[1] is unused by terminateScript: the inventory key is resolved
	// from the decoded record once it knows the sku, so the placeholder
	// here carries no meaning.
	res, err := terminateScript.Run(scriptCtx, e.rdb,
		[]string{"", reservationKey(reservationID), expiryIndexKey},
		requestingUser,
	).Slice()
	if err != nil {
		return ReservationRecord{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	code, _ := res[0].(int64)
	switch code {
	case 0:
		return ReservationRecord{}, apperr.New(apperr.KindAlreadyTerminal, "reservation is already terminal or does not exist", nil)
	case -1:
		return ReservationRecord{}, apperr.New(apperr.KindForbidden, "reservation belongs to a different user", nil)
	case 1:
		raw, _ := res[1].(string)
		var rec ReservationRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return ReservationRecord{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
		}
		if requestingUser != "" {
			rec.Status = StatusCancelled
			e.log.Info().Str("reservation_id", reservationID).Str("user_id", requestingUser).Msg("reservation cancelled")
		} else {
			rec.Status = StatusExpired
			e.log.Info().Str("reservation_id", reservationID).Msg("reservation expired")
		}
		return rec, nil
	default:
		return ReservationRecord{}, apperr.New(apperr.KindBackendUnavailable, "unexpected script result", nil)
	}
}
