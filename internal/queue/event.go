// Package queue defines message payloads exchanged over the message broker.
package queue

import "github.com/smstore/backend/internal/model"

// OrderSettledQueue is the queue settlement events are published to.
const OrderSettledQueue = "order.settled"

// OrderSettledEvent is published whenever the settlement machine applies
// a state change. It carries enough for downstream consumers (email,
// analytics, fulfillment) to act without querying the primary database.
type OrderSettledEvent struct {
	OrderID       uint64              `json:"order_id"`
	UserID        uint64              `json:"user_id"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	OrderStatus   model.OrderStatus   `json:"order_status"`
	SettledAt     string              `json:"settled_at"`
}
