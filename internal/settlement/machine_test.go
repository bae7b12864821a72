package settlement_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/repository"
	"github.com/smstore/backend/internal/settlement"
)

// memOrderStore reproduces the repository's commit-time conditional
// updates in memory.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[uint64]*model.Order
}

func newMemOrderStore(orders ...*model.Order) *memOrderStore {
	s := &memOrderStore{orders: make(map[uint64]*model.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memOrderStore) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrderStore) SettleCapture(_ context.Context, orderID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentUnpaid {
		return false, nil
	}
	o.PaymentStatus = model.PaymentPaid
	o.OrderStatus = model.OrderProcessing
	return true, nil
}

func (s *memOrderStore) SettleFailure(_ context.Context, orderID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentUnpaid {
		return false, nil
	}
	o.PaymentStatus = model.PaymentFailed
	return true, nil
}

func (s *memOrderStore) AdvanceStatus(_ context.Context, orderID uint64, current, next model.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.OrderStatus != current {
		return false, nil
	}
	o.OrderStatus = next
	return true, nil
}

type emission struct {
	subjectID uint64
	event     string
	payload   any
}

type recordingNotifier struct {
	mu        sync.Mutex
	emissions []emission
}

func (n *recordingNotifier) Emit(subjectID uint64, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emissions = append(n.emissions, emission{subjectID, event, payload})
}

func (n *recordingNotifier) all() []emission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]emission(nil), n.emissions...)
}

func pendingOrder(id, userID uint64) *model.Order {
	return &model.Order{
		ID:            id,
		UserID:        userID,
		TotalAmount:   20,
		PaymentMethod: model.PaymentMethodStripe,
		PaymentStatus: model.PaymentUnpaid,
		OrderStatus:   model.OrderPending,
	}
}

func TestApplyPaymentEventCaptured(t *testing.T) {
	store := newMemOrderStore(pendingOrder(1, 42))
	notifier := &recordingNotifier{}
	m := settlement.NewMachine(store, notifier, nil)

	order, changed, err := m.ApplyPaymentEvent(context.Background(), settlement.PaymentEvent{
		Processor:       model.PaymentMethodStripe,
		ExternalEventID: "evt_1",
		OrderID:         1,
		Outcome:         settlement.OutcomeCaptured,
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, model.OrderProcessing, order.OrderStatus)

	got := notifier.all()
	require.Len(t, got, 1)
	assert.Equal(t, uint64(42), got[0].subjectID)
	assert.Equal(t, "orderUpdate", got[0].event)
	upd, ok := got[0].payload.(settlement.OrderUpdate)
	require.True(t, ok)
	assert.Equal(t, uint64(1), upd.OrderID)
	assert.Equal(t, model.PaymentPaid, upd.PaymentStatus)
}

func TestApplyPaymentEventDuplicateIsNoOp(t *testing.T) {
	store := newMemOrderStore(pendingOrder(1, 42))
	notifier := &recordingNotifier{}
	m := settlement.NewMachine(store, notifier, nil)

	ev := settlement.PaymentEvent{
		Processor:       model.PaymentMethodStripe,
		ExternalEventID: "evt_1",
		OrderID:         1,
		Outcome:         settlement.OutcomeCaptured,
	}
	_, changed, err := m.ApplyPaymentEvent(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, changed)

	// Redelivery of the same event changes nothing and emits nothing.
	order, changed, err := m.ApplyPaymentEvent(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PaymentPaid, order.PaymentStatus)
	assert.Len(t, notifier.all(), 1)
}

func TestApplyPaymentEventFailed(t *testing.T) {
	store := newMemOrderStore(pendingOrder(2, 7))
	notifier := &recordingNotifier{}
	m := settlement.NewMachine(store, notifier, nil)

	order, changed, err := m.ApplyPaymentEvent(context.Background(), settlement.PaymentEvent{
		Processor:       model.PaymentMethodPayPal,
		ExternalEventID: "WH-1",
		OrderID:         2,
		Outcome:         settlement.OutcomeFailed,
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.PaymentFailed, order.PaymentStatus)
	assert.Equal(t, model.OrderPending, order.OrderStatus)
}

func TestApplyPaymentEventCaptureAfterFailureIsNoOp(t *testing.T) {
	store := newMemOrderStore(pendingOrder(3, 7))
	notifier := &recordingNotifier{}
	m := settlement.NewMachine(store, notifier, nil)

	_, _, err := m.ApplyPaymentEvent(context.Background(), settlement.PaymentEvent{
		OrderID: 3, Outcome: settlement.OutcomeFailed,
	})
	require.NoError(t, err)

	// A late capture for an already-failed order does not resurrect it.
	order, changed, err := m.ApplyPaymentEvent(context.Background(), settlement.PaymentEvent{
		OrderID: 3, Outcome: settlement.OutcomeCaptured,
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.PaymentFailed, order.PaymentStatus)
	assert.Len(t, notifier.all(), 1)
}

func TestApplyPaymentEventUnknownOrder(t *testing.T) {
	m := settlement.NewMachine(newMemOrderStore(), &recordingNotifier{}, nil)

	_, _, err := m.ApplyPaymentEvent(context.Background(), settlement.PaymentEvent{
		OrderID: 999, Outcome: settlement.OutcomeCaptured,
	})
	assert.ErrorIs(t, err, settlement.ErrUnknownOrder)
}

func TestAdvanceOrderStatusForwardSteps(t *testing.T) {
	o := pendingOrder(1, 42)
	o.PaymentStatus = model.PaymentPaid
	o.OrderStatus = model.OrderProcessing
	store := newMemOrderStore(o)
	notifier := &recordingNotifier{}
	m := settlement.NewMachine(store, notifier, nil)

	got, err := m.AdvanceOrderStatus(context.Background(), 1, model.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, model.OrderShipped, got.OrderStatus)

	got, err = m.AdvanceOrderStatus(context.Background(), 1, model.OrderDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivered, got.OrderStatus)

	assert.Len(t, notifier.all(), 2)
}

func TestAdvanceOrderStatusRejectsSkipsAndReversals(t *testing.T) {
	cases := []struct {
		name string
		from model.OrderStatus
		to   model.OrderStatus
	}{
		{"skip a step", model.OrderPending, model.OrderShipped},
		{"move backward", model.OrderShipped, model.OrderProcessing},
		{"leave terminal state", model.OrderDelivered, model.OrderPending},
		{"stay in place", model.OrderProcessing, model.OrderProcessing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := pendingOrder(1, 42)
			o.OrderStatus = tc.from
			store := newMemOrderStore(o)
			notifier := &recordingNotifier{}
			m := settlement.NewMachine(store, notifier, nil)

			_, err := m.AdvanceOrderStatus(context.Background(), 1, tc.to)
			assert.ErrorIs(t, err, settlement.ErrInvalidStatus)
			assert.Empty(t, notifier.all())

			got, err := store.GetByID(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tc.from, got.OrderStatus)
		})
	}
}

func TestAdvanceOrderStatusRejectsUnknownName(t *testing.T) {
	m := settlement.NewMachine(newMemOrderStore(pendingOrder(1, 42)), &recordingNotifier{}, nil)

	_, err := m.AdvanceOrderStatus(context.Background(), 1, model.OrderStatus("teleported"))
	assert.ErrorIs(t, err, settlement.ErrInvalidStatus)
}

func TestAdvanceOrderStatusUnknownOrder(t *testing.T) {
	m := settlement.NewMachine(newMemOrderStore(), &recordingNotifier{}, nil)

	_, err := m.AdvanceOrderStatus(context.Background(), 404, model.OrderProcessing)
	assert.ErrorIs(t, err, settlement.ErrUnknownOrder)
}
