package checkout

import (
	"context"
	"database/sql"
	"time"

	"github.com/flashsale/inventory-core/internal/apperr"
	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/catalog"
	"github.com/flashsale/inventory-core/internal/engine"
)

// Confirm turns a live reservation into a durable order (spec §4.F).
// Step 3's optimistic delete is performed by the Engine
// (ConsumeForCheckout); everything after that is this package's job:
// price lookup, the orders/order_items transaction, and the audit event.
func (c *Coordinator) Confirm(ctx context.Context, userID, reservationID string) (Order, error) {
	rec, err := c.engine.ConsumeForCheckout(ctx, userID, reservationID)
	if err != nil {
		return Order{}, err
	}

	pricePerUnit, err := catalog.PriceCents(rec.SKU)
	if err != nil {
		return Order{}, apperr.New(apperr.KindInvalidInput, "sku has no catalog price", map[string]any{"sku": rec.SKU})
	}
	total := pricePerUnit * rec.Quantity

	orderID, err := engine.NewOrderID()
	if err != nil {
		return Order{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}
	createdAt := time.Now().UTC()

	if err := c.writeOrder(ctx, orderID, userID, createdAt, rec.SKU, rec.Quantity, pricePerUnit, total); err != nil {
		return Order{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}

	c.log.Info().Str("order_id", orderID).Str("reservation_id", reservationID).Str("user_id", userID).
		Int64("total_amount", total).Msg("checkout confirmed")

	if c.publisher != nil {
		go c.publisher.Publish(context.Background(), audit.Event{
			Type:          audit.EventConfirm,
			ReservationID: reservationID,
			OrderID:       orderID,
			SKU:           rec.SKU,
			Quantity:      rec.Quantity,
			UserID:        userID,
			OccurredAt:    createdAt,
		})
	}

	return Order{
		OrderID:     orderID,
		UserID:      userID,
		Status:      "confirmed",
		TotalAmount: total,
		CreatedAt:   createdAt.Format(time.RFC3339),
		Items: []OrderItem{
			{SKU: rec.SKU, Quantity: rec.Quantity, PricePerUnit: pricePerUnit},
		},
	}, nil
}

// writeOrder inserts the order and its single line item in one durable
// transaction, following the teacher's database/sql
// BeginTx/deferred-rollback/commit idiom.
func (c *Coordinator) writeOrder(ctx context.Context, orderID, userID string, createdAt time.Time, sku string, quantity, pricePerUnit, total int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO orders (order_id, user_id, status, total_amount, created_at) VALUES (?, ?, 'confirmed', ?, ?)`,
		orderID, userID, total, createdAt,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO order_items (order_id, sku, quantity, price_per_unit) VALUES (?, ?, ?, ?)`,
		orderID, sku, quantity, pricePerUnit,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// GetOrder reads back a confirmed order and its line items (used by the
// HTTP layer's order lookup endpoint).
func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Order
	row := c.db.QueryRowContext(ctx,
		`SELECT order_id, user_id, status, total_amount, created_at FROM orders WHERE order_id = ?`, orderID)

	var createdAt time.Time
	if err := row.Scan(&o.OrderID, &o.UserID, &o.Status, &o.TotalAmount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return Order{}, apperr.New(apperr.KindNotFound, "order not found", nil)
		}
		return Order{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}
	o.CreatedAt = createdAt.Format(time.RFC3339)

	rows, err := c.db.QueryContext(ctx,
		`SELECT sku, quantity, price_per_unit FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return Order{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
	}
	defer rows.Close()

	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.SKU, &item.Quantity, &item.PricePerUnit); err != nil {
			return Order{}, apperr.New(apperr.KindBackendUnavailable, err.Error(), nil)
		}
		o.Items = append(o.Items, item)
	}
	return o, nil
}
