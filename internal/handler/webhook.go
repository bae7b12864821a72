package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/payment"
	"github.com/smstore/backend/internal/settlement"
)

// maxWebhookBody caps how much of a webhook delivery is read.
const maxWebhookBody = 1 << 20

// WebhookHandler receives processor notifications. Verification happens
// here, at the transport boundary; the settlement machine only ever sees
// authenticated events. Once a payload is structurally accepted the
// handler acknowledges it even if the referenced order is unknown —
// rejecting would only trigger a processor-side retry storm.
type WebhookHandler struct {
	Stripe  *payment.StripeClient
	PayPal  *payment.PayPalClient
	Machine *settlement.Machine
}

func NewWebhookHandler(stripe *payment.StripeClient, paypal *payment.PayPalClient, machine *settlement.Machine) *WebhookHandler {
	return &WebhookHandler{Stripe: stripe, PayPal: paypal, Machine: machine}
}

// StripeWebhook verifies the Stripe-Signature header against the raw
// body, then feeds the event to the settlement machine.
func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	if err := h.Stripe.VerifyWebhook(body, c.Request().Header.Get("Stripe-Signature")); err != nil {
		log.Printf("stripe: webhook signature verification failed: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "webhook verification failed"})
	}

	event, ok, err := h.Stripe.ParseWebhook(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}
	if !ok {
		// Event type this endpoint does not consume; acknowledge and move on.
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	return h.apply(c, event)
}

// PayPalWebhook verifies the transmission headers through PayPal's
// verification API, then feeds the event to the settlement machine.
func (h *WebhookHandler) PayPalWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.PayPal.VerifyWebhook(ctx, c.Request().Header, body); err != nil {
		log.Printf("paypal: webhook verification failed: %v", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "webhook verification failed"})
	}

	event, ok, err := h.PayPal.ParseWebhook(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}
	return h.apply(c, event)
}

// apply runs the settlement machine and maps its outcome onto the ACK
// contract: unknown orders are logged and acknowledged, store failures
// are 500s so the processor redelivers later.
func (h *WebhookHandler) apply(c echo.Context, event settlement.PaymentEvent) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, _, err := h.Machine.ApplyPaymentEvent(ctx, event)
	if err != nil {
		if errors.Is(err, settlement.ErrUnknownOrder) {
			log.Printf("webhook: %s event %s references unknown order %d",
				event.Processor, event.ExternalEventID, event.OrderID)
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		log.Printf("webhook: applying %s event %s failed: %v",
			event.Processor, event.ExternalEventID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settlement failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
