package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// idempotencySlot is what gets stored under idempotency:{user_id}:{fingerprint}
// between the moment a request claims the slot and the moment the underlying
// reserve finishes. Readers of an in-flight slot retry rather than double
// decrementing (spec §4.D).
type idempotencySlot struct {
	Done   bool          `json:"done"`
	Result ReserveResult `json:"result,omitempty"`
}

const idempotencyPollInterval = 50 * time.Millisecond

// reserveIdempotent consults the Idempotency Mapping before any state
// change: it first tries to claim the fingerprint slot with SETNX. The
// claimant runs the real reserve and then overwrites the slot with the
// result; everyone else polls the slot until it is populated. This is the
// two-step "reserve the fingerprint slot, then record the result" pattern
// spec §4.D recommends, so two concurrent identical-fingerprint requests
// never both decrement.
func (e *Engine) reserveIdempotent(ctx context.Context, userID, sku string, quantity int64, fingerprint string) (ReserveResult, error) {
	key := idempotencyKey(userID, fingerprint)

	inFlight := idempotencySlot{Done: false}
	inFlightJSON, err := json.Marshal(inFlight)
	if err != nil {
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	ok, err := e.rdb.SetNX(claimCtx, key, string(inFlightJSON), e.idempotencyTTL).Result()
	cancel()
	if err != nil {
		return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	if ok {
		result, reserveErr := e.reserveOnce(ctx, userID, sku, quantity)
		slot := idempotencySlot{Done: true}
		if reserveErr == nil {
			slot.Result = result
		}
		slotJSON, marshalErr := json.Marshal(slot)
		if marshalErr == nil {
			writeCtx, writeCancel := context.WithTimeout(context.Background(), 2*time.Second)
			if reserveErr != nil {
				// Failed: free the slot so a legitimate retry isn't
				// permanently blocked by a transient error.
				e.rdb.Del(writeCtx, key)
			} else {
				e.rdb.Set(writeCtx, key, string(slotJSON), e.idempotencyTTL)
			}
			writeCancel()
		}
		return result, reserveErr
	}

	return e.waitForSlot(ctx, key)
}

// waitForSlot polls an in-flight idempotency slot claimed by a concurrent
// identical-fingerprint request, with a bounded number of attempts (spec
// §4.D "bounded retry" fallback for the in-flight race).
func (e *Engine) waitForSlot(ctx context.Context, key string) (ReserveResult, error) {
	deadline := time.Now().Add(e.idempotencyTTL)
	for attempt := 0; attempt < 40; attempt++ {
		if time.Now().After(deadline) {
			break
		}

		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		raw, err := e.rdb.Get(readCtx, key).Result()
		cancel()

		if err == redis.Nil {
			// Slot expired or was freed after a failure; nothing to
			// replay, so the caller should submit a fresh request.
			return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, "idempotency slot vanished before completion", nil)
		}
		if err != nil {
			return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
		}

		var slot idempotencySlot
		if err := json.Unmarshal([]byte(raw), &slot); err == nil && slot.Done {
			return slot.Result, nil
		}

		select {
		case <-ctx.Done():
			return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, ctx.Err().Error(), nil)
		case <-time.After(idempotencyPollInterval):
		}
	}
	return ReserveResult{}, apperr.New(apperr.KindBackendUnavailable, "timed out waiting for in-flight reserve", nil)
}
