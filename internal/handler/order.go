package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/middleware"
	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/payment"
	"github.com/smstore/backend/internal/repository"
	"github.com/smstore/backend/internal/settlement"
)

// OrderStore is the slice of the order repository the order endpoints
// need directly. Settlement transitions go through the machine instead.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	SetPaymentRef(ctx context.Context, orderID uint64, ref string) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Order, error)
	SettleFailure(ctx context.Context, orderID uint64) (bool, error)
	Delete(ctx context.Context, orderID uint64) error
}

// OrderHandler bundles dependencies for the order endpoints. The
// settlement machine and notification hub arrive via the constructor, so
// there is no call-time lookup of the emitter anywhere.
type OrderHandler struct {
	Orders     OrderStore
	Machine    *settlement.Machine
	Initiators map[model.PaymentMethod]payment.Initiator
}

func NewOrderHandler(orders OrderStore, machine *settlement.Machine, initiators map[model.PaymentMethod]payment.Initiator) *OrderHandler {
	return &OrderHandler{Orders: orders, Machine: machine, Initiators: initiators}
}

type orderItemReq struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity uint32  `json:"quantity"`
}

type createOrderReq struct {
	Items         []orderItemReq `json:"items"`
	PaymentMethod string         `json:"payment_method"`
}

type createOrderResp struct {
	Order   *model.Order        `json:"order"`
	Payment *payment.Initiation `json:"payment"`
}

// Create validates the items, derives the total server-side, persists the
// order and initiates payment with the chosen processor. If the processor
// call fails, the order is settled as failed before the error surfaces:
// no order may claim a payment was initiated when it was not.
func (h *OrderHandler) Create(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Items) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "items required"})
	}
	method := model.PaymentMethod(req.PaymentMethod)
	if !method.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment method"})
	}

	order := &model.Order{
		UserID:        claims.SubjectID(),
		PaymentMethod: method,
	}
	var total float64
	for _, it := range req.Items {
		if it.Title == "" || it.Price <= 0 || it.Quantity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item"})
		}
		total += it.Price * float64(it.Quantity)
		order.Items = append(order.Items, model.OrderItem{
			Title:    it.Title,
			Price:    it.Price,
			Quantity: it.Quantity,
		})
	}
	order.TotalAmount = total

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.Orders.Create(ctx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}

	initiator := h.Initiators[method]
	if initiator == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment method"})
	}
	init, err := initiator.Initiate(ctx, order.TotalAmount, order.ID)
	if err != nil {
		_, _ = h.Orders.SettleFailure(ctx, order.ID)
		order.PaymentStatus = model.PaymentFailed
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment processor unavailable"})
	}
	if err := h.Orders.SetPaymentRef(ctx, order.ID, init.PaymentID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create order failed"})
	}

	return c.JSON(http.StatusCreated, createOrderResp{Order: order, Payment: init})
}

// List returns the caller's own orders.
func (h *OrderHandler) List(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	orders, err := h.Orders.ListByUser(ctx, claims.SubjectID())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": orders})
}

// Get returns one order. Owners read their own; admins read any, but the
// response never discloses other subjects' data to a non-admin.
func (h *OrderHandler) Get(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if order.UserID != claims.SubjectID() &&
		claims.Role != model.RoleAdmin && claims.Role != model.RoleSuperAdmin {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	return c.JSON(http.StatusOK, order)
}

type updateStatusReq struct {
	OrderStatus string `json:"order_status"`
}

// UpdateStatus performs an authorized fulfillment transition through the
// settlement machine. Role gating happens in the route middleware; the
// machine enforces the forward-only sequence.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	next, ok := model.ParseOrderStatus(req.OrderStatus)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	order, err := h.Machine.AdvanceOrderStatus(ctx, id, next)
	if err != nil {
		switch {
		case errors.Is(err, settlement.ErrInvalidStatus):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		case errors.Is(err, settlement.ErrUnknownOrder):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, order)
}

// Delete removes an order. Restricted to super_admin by the route.
func (h *OrderHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Orders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
