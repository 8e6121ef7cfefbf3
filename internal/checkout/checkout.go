// Package checkout implements the Checkout Coordinator (spec §4.F):
// turning a live reservation into a durable order, and delegating
// cancellation to the Reservation Engine.
package checkout

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/flashsale/inventory-core/internal/audit"
	"github.com/flashsale/inventory-core/internal/engine"
)

// Coordinator owns the confirm/cancel/read-order operations. It never
// touches Redis directly; all hot-state mutation goes through Engine per
// the ownership rule in spec §3.
type Coordinator struct {
	engine    *engine.Engine
	db        *sql.DB
	publisher *audit.Publisher
	log       zerolog.Logger
}

func New(eng *engine.Engine, db *sql.DB, publisher *audit.Publisher, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		engine:    eng,
		db:        db,
		publisher: publisher,
		log:       log.With().Str("component", "checkout").Logger(),
	}
}

// Order is the durable payload confirm returns (spec §3 "Order").
type Order struct {
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	Status      string      `json:"status"`
	TotalAmount int64       `json:"total_amount"`
	CreatedAt   string      `json:"created_at"`
	Items       []OrderItem `json:"items"`
}

type OrderItem struct {
	SKU          string `json:"sku"`
	Quantity     int64  `json:"quantity"`
	PricePerUnit int64  `json:"price_per_unit"`
}
