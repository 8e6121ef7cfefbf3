package checkout

import (
	"context"
	"time"

	"github.com/flashsale/inventory-core/internal/audit"
)

// Cancel delegates to the Engine's cancel script and publishes the
// resulting audit event; Checkout owns no hot state of its own for
// cancellation, it only orchestrates the call and the audit side effect
// (spec §4.C `cancel`, fired from the checkout surface per spec §4.F's
// confirm/cancel pairing).
func (c *Coordinator) Cancel(ctx context.Context, userID, reservationID string) error {
	rec, err := c.engine.Cancel(ctx, userID, reservationID)
	if err != nil {
		return err
	}

	c.log.Info().Str("reservation_id", reservationID).Str("user_id", userID).Msg("checkout cancelled")

	if c.publisher != nil {
		go c.publisher.Publish(context.Background(), audit.Event{
			Type:          audit.EventCancel,
			ReservationID: reservationID,
			SKU:           rec.SKU,
			Quantity:      rec.Quantity,
			UserID:        userID,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return nil
}
