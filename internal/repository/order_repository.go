package repository

import (
	"context"
	"database/sql"

	"github.com/smstore/backend/internal/model"
)

// OrderRepo persists orders and their line items.
type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// Create inserts the order and its items in one transaction. The order
// starts in unpaid/pending; the total has already been derived by the
// service layer.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, total_amount, payment_method, payment_status, order_status) VALUES (?,?,?,?,?)",
		o.UserID, o.TotalAmount, string(o.PaymentMethod), string(model.PaymentUnpaid), string(model.OrderPending))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	o.PaymentStatus = model.PaymentUnpaid
	o.OrderStatus = model.OrderPending

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID
		ires, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, title, price, quantity) VALUES (?,?,?,?)",
			o.ID, item.Title, item.Price, item.Quantity)
		if err != nil {
			return err
		}
		iid, err := ires.LastInsertId()
		if err != nil {
			return err
		}
		item.ID = uint64(iid)
	}
	return tx.Commit()
}

// SetPaymentRef records the processor-side reference returned when
// payment was initiated.
func (r *OrderRepo) SetPaymentRef(ctx context.Context, orderID uint64, ref string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET payment_ref=? WHERE id=?", ref, orderID)
	return err
}

// GetByID loads an order with its items. Returns ErrNotFound when absent.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var (
		o                       model.Order
		method, payment, status string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, total_amount, payment_method, payment_status, order_status, created_at, updated_at FROM orders WHERE id=? LIMIT 1",
		id).Scan(&o.ID, &o.UserID, &o.TotalAmount, &method, &payment, &status, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.PaymentStatus = model.PaymentStatus(payment)
	o.OrderStatus = model.OrderStatus(status)

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns a user's orders, newest first, items included.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, total_amount, payment_method, payment_status, order_status, created_at, updated_at FROM orders WHERE user_id=? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var (
			o                       model.Order
			method, payment, status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &method, &payment, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.PaymentMethod = model.PaymentMethod(method)
		o.PaymentStatus = model.PaymentStatus(payment)
		o.OrderStatus = model.OrderStatus(status)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadItems(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SettleCapture applies the captured transition (unpaid -> paid, pending
// -> processing) as a single conditional UPDATE. The WHERE clause checks
// payment_status at commit time, so a concurrent duplicate delivery
// observes zero affected rows and reports changed=false instead of
// double-applying.
func (r *OrderRepo) SettleCapture(ctx context.Context, orderID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET payment_status=?, order_status=? WHERE id=? AND payment_status=?",
		string(model.PaymentPaid), string(model.OrderProcessing), orderID, string(model.PaymentUnpaid))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SettleFailure applies the failed transition (unpaid -> failed) with the
// same commit-time guard. order_status is left untouched.
func (r *OrderRepo) SettleFailure(ctx context.Context, orderID uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET payment_status=? WHERE id=? AND payment_status=?",
		string(model.PaymentFailed), orderID, string(model.PaymentUnpaid))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AdvanceStatus moves order_status from the expected current value to
// next. The guard on the current value makes the forward-only policy hold
// under concurrent admin updates.
func (r *OrderRepo) AdvanceStatus(ctx context.Context, orderID uint64, current, next model.OrderStatus) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE orders SET order_status=? WHERE id=? AND order_status=?",
		string(next), orderID, string(current))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes an order and its items. Restricted to super_admin at the
// handler layer.
func (r *OrderRepo) Delete(ctx context.Context, orderID uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id=?", orderID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id=?", orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r *OrderRepo) loadItems(ctx context.Context, o *model.Order) error {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, order_id, title, price, quantity FROM order_items WHERE order_id=? ORDER BY id",
		o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Title, &it.Price, &it.Quantity); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}
