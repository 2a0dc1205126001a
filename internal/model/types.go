// Package model defines domain types used by the service.
package model

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// StatusAwaitingPayment is the initial state set by checkout.
	StatusAwaitingPayment OrderStatus = "awaiting_payment"
	// StatusPaid is reached when the payment callback signature verifies.
	StatusPaid OrderStatus = "paid"
	// StatusDispensed is reached when a card scan releases the items.
	StatusDispensed OrderStatus = "dispensed"
	// StatusFailed is terminal; reachable only from awaiting_payment when
	// checkout fails before a processor transaction exists.
	StatusFailed OrderStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a legal forward
// step. Transitions never skip a state and never move backward.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusAwaitingPayment:
		return next == StatusPaid || next == StatusFailed
	case StatusPaid:
		return next == StatusDispensed
	default:
		return false
	}
}

// User is a registered buyer. Created by the registration flow; read-only
// to this service.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	CardID string `json:"card_id"` // canonical form, e.g. "AA:BB:CC:DD"
}

// Product is a sellable SKU. Stock is mutated only by the dispense debit.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int64  `json:"stock"`
}

// LineItem is one product/quantity pair within an order. UnitPriceCents is
// captured at order time and never re-read from the catalog.
type LineItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// Order is the audit record of a purchase. TotalCents is computed once at
// creation; TransactionRef is empty until checkout opens a processor
// transaction.
type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	Items          []LineItem  `json:"items"`
	TotalCents     int64       `json:"total_cents"`
	TransactionRef string      `json:"transaction_ref,omitempty"`
	Status         OrderStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
}

// PaymentCallback is the processor's payment-confirmation payload.
type PaymentCallback struct {
	TransactionID string `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
	Signature     string `json:"signature"`
}
