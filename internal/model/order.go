package model

import "time"

// PaymentMethod selects the payment processor an order settles through.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// Valid reports whether the method names a supported processor.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodStripe || m == PaymentMethodPayPal
}

// PaymentStatus tracks whether an order's payment settled. It moves from
// unpaid to exactly one of paid or failed; both are terminal.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

// OrderStatus tracks fulfillment. The sequence is strictly forward:
// pending, processing, shipped, delivered.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
)

// ParseOrderStatus maps a client-supplied string onto the closed status
// set, reporting false for anything outside it.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

// OrderItem is one line of an order. Price is the unit price in dollars
// at purchase time; the line total is Price * Quantity.
type OrderItem struct {
	ID       uint64  `json:"id"`
	OrderID  uint64  `json:"order_id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity uint32  `json:"quantity"`
}

// Order models a row of the `orders` table with its items. TotalAmount
// is derived server-side from the items at creation and never trusted
// from a client. PaymentRef holds the processor-side identifier of the
// initiated payment (payment intent or checkout order).
type Order struct {
	ID            uint64        `json:"id"`
	UserID        uint64        `json:"user_id"`
	Items         []OrderItem   `json:"items"`
	TotalAmount   float64       `json:"total_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	OrderStatus   OrderStatus   `json:"order_status"`
	PaymentRef    string        `json:"payment_ref,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
