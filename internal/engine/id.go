package engine

import "github.com/google/uuid"

// newReservationID generates an opaque rsv_-prefixed identifier, following
// the martindeamorin-inventory pack's uuid.New() idiom for reservation ids
// instead of hand-rolled random hex.
func newReservationID() (string, error) {
	return "rsv_" + uuid.New().String(), nil
}

// NewOrderID generates an opaque ord_-prefixed identifier for the Checkout
// Coordinator (spec §6 "order ord_ + 12+ chars").
func NewOrderID() (string, error) {
	return "ord_" + uuid.New().String(), nil
}
