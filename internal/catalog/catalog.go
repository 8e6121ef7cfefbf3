// Package catalog holds the static per-SKU pricing table used by checkout.
// Price is a hardcoded constant per SKU, as the source system treats it;
// the core does not own pricing, so there is no admin path to change it.
package catalog

import "errors"

// ErrUnknownSKU is returned when a SKU has no catalogue entry.
var ErrUnknownSKU = errors.New("sku not in catalog")

// prices maps a SKU to its price in cents. Flash-sale SKUs are seeded here
// the way the teacher seeds seat pricing tiers in its migrations; there is
// no runtime mutation path by design.
var prices = map[string]int64{
	"FLASH-001": 4999,
	"FLASH-002": 2999,
	"FLASH-003": 9999,
	"FLASH-VIP": 19999,
}

// PriceCents returns the per-unit price in cents for sku, or ErrUnknownSKU
// if the SKU has no catalogue entry.
func PriceCents(sku string) (int64, error) {
	p, ok := prices[sku]
	if !ok {
		return 0, ErrUnknownSKU
	}
	return p, nil
}
