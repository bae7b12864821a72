// Package settlement advances an order's payment and fulfillment status
// from processor-originated events. Events reach this package only after
// the processor-specific webhook verifier has accepted them; everything
// here assumes an authentic, possibly duplicated, possibly out-of-order
// delivery.
package settlement

import (
	"context"
	"errors"
	"log"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/repository"
)

// ErrUnknownOrder is returned when an event references an order that does
// not exist. The webhook entry point still acknowledges the delivery to
// the processor; only the anomaly is logged.
var ErrUnknownOrder = errors.New("unknown order")

// ErrInvalidStatus is returned when a fulfillment transition falls
// outside the enumerated forward sequence.
var ErrInvalidStatus = errors.New("invalid order status transition")

// Outcome is the normalized result of a processor event.
type Outcome string

const (
	OutcomeCaptured Outcome = "captured"
	OutcomeFailed   Outcome = "failed"
)

// PaymentEvent is the single internal shape both processors' webhooks are
// normalized to before they reach the machine.
type PaymentEvent struct {
	Processor       model.PaymentMethod
	ExternalEventID string
	OrderID         uint64
	Outcome         Outcome
}

// OrderStore is the persistence surface the machine needs. The two Settle
// methods must evaluate the current payment status at commit time (a
// conditional update) and report whether a row actually changed.
type OrderStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	SettleCapture(ctx context.Context, orderID uint64) (bool, error)
	SettleFailure(ctx context.Context, orderID uint64) (bool, error)
	AdvanceStatus(ctx context.Context, orderID uint64, current, next model.OrderStatus) (bool, error)
}

// Notifier delivers an event to every live connection of one subject.
// Delivery is fire-and-forget; the machine never learns whether anyone
// was listening.
type Notifier interface {
	Emit(subjectID uint64, event string, payload any)
}

// Publisher fans the applied settlement out to external consumers over
// the message broker. Best-effort: failures are logged, never surfaced.
type Publisher interface {
	PublishOrderSettled(ctx context.Context, o *model.Order) error
}

// OrderUpdate is the payload of the orderUpdate event pushed to the
// order's owner.
type OrderUpdate struct {
	OrderID       uint64              `json:"orderId"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus,omitempty"`
	OrderStatus   model.OrderStatus   `json:"orderStatus,omitempty"`
}

// Machine applies settlement events and fulfillment transitions. All
// collaborators are injected at construction; there is no ambient state.
type Machine struct {
	orders    OrderStore
	notifier  Notifier
	publisher Publisher
}

// NewMachine wires a Machine. publisher may be nil when no broker is
// configured.
func NewMachine(orders OrderStore, notifier Notifier, publisher Publisher) *Machine {
	return &Machine{orders: orders, notifier: notifier, publisher: publisher}
}

// nextStatus is the forward fulfillment sequence as an explicit table.
// Delivered is terminal; skipping a step is not enumerated and therefore
// illegal.
var nextStatus = map[model.OrderStatus]model.OrderStatus{
	model.OrderPending:    model.OrderProcessing,
	model.OrderProcessing: model.OrderShipped,
	model.OrderShipped:    model.OrderDelivered,
}

// ApplyPaymentEvent applies a verified processor event to the referenced
// order. The returned bool reports whether state actually changed; a
// duplicate or late delivery yields the current order unchanged and no
// side effects. An event for a nonexistent order fails with
// ErrUnknownOrder.
func (m *Machine) ApplyPaymentEvent(ctx context.Context, ev PaymentEvent) (*model.Order, bool, error) {
	var (
		changed bool
		err     error
	)
	switch ev.Outcome {
	case OutcomeCaptured:
		changed, err = m.orders.SettleCapture(ctx, ev.OrderID)
	case OutcomeFailed:
		changed, err = m.orders.SettleFailure(ctx, ev.OrderID)
	default:
		log.Printf("settlement: dropping event %s with unknown outcome %q", ev.ExternalEventID, ev.Outcome)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	order, err := m.orders.GetByID(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, ErrUnknownOrder
		}
		return nil, false, err
	}

	if !changed {
		// Redelivery or capture of a non-unpaid order. Processors retry;
		// this is informational, not an error.
		log.Printf("settlement: event %s for order %d is a no-op (payment_status=%s)",
			ev.ExternalEventID, order.ID, order.PaymentStatus)
		return order, false, nil
	}

	m.fanOut(order)
	return order, true, nil
}

// AdvanceOrderStatus performs an authorized fulfillment transition. Only
// the single forward step enumerated in nextStatus is legal; anything
// else, including skipping a step or moving backward, fails with
// ErrInvalidStatus.
func (m *Machine) AdvanceOrderStatus(ctx context.Context, orderID uint64, next model.OrderStatus) (*model.Order, error) {
	if _, ok := model.ParseOrderStatus(string(next)); !ok {
		return nil, ErrInvalidStatus
	}
	order, err := m.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownOrder
		}
		return nil, err
	}
	if nextStatus[order.OrderStatus] != next {
		return nil, ErrInvalidStatus
	}

	changed, err := m.orders.AdvanceStatus(ctx, orderID, order.OrderStatus, next)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with another transition; re-read and reject.
		return nil, ErrInvalidStatus
	}
	order.OrderStatus = next

	m.fanOut(order)
	return order, nil
}

// fanOut pushes the state change to the owner's live connections and to
// the broker. Both paths are decoupled from the request that triggered
// the change: Emit never blocks, and the broker publish runs on its own
// goroutine with its own deadline.
func (m *Machine) fanOut(order *model.Order) {
	m.notifier.Emit(order.UserID, "orderUpdate", OrderUpdate{
		OrderID:       order.ID,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
	})
	if m.publisher != nil {
		snapshot := *order
		go func() {
			if err := m.publisher.PublishOrderSettled(context.Background(), &snapshot); err != nil {
				log.Printf("settlement: broker publish for order %d failed: %v", snapshot.ID, err)
			}
		}()
	}
}
