package engine

import (
	"context"
	"time"

	"github.com/flashsale/inventory-core/internal/apperr"
)

// Initialize sets the SKU counter to quantity, overwriting any prior value.
// Callers are expected to gate this behind an administrative path; the
// Engine enforces only quantity >= 0 (spec §4.C `initialize`).
func (e *Engine) Initialize(ctx context.Context, sku string, quantity int64) (int64, error) {
	if quantity < 0 {
		return 0, apperr.New(apperr.KindInvalidInput, "quantity must be >= 0", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := e.rdb.Set(ctx, inventoryKey(sku), quantity, 0).Err(); err != nil {
		return 0, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}
	return quantity, nil
}
