package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// Status returns {sku, available}, or {sku, available: 0, uninitialized:
// true} when the counter key is absent (spec §4.C `status`).
func (e *Engine) Status(ctx context.Context, sku string) (StatusResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	n, err := e.rdb.Get(ctx, inventoryKey(sku)).Int64()
	if err == redis.Nil {
		return StatusResult{SKU: sku, Available: 0, Uninitialized: true}, nil
	}
	if err != nil {
		return StatusResult{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}
	return StatusResult{SKU: sku, Available: n}, nil
}
