// Package payment talks to the two external processors. Each processor
// contributes a webhook verifier, run at the transport boundary before
// any state mutation, and an initiation call made while creating an
// order. Both clients carry bounded timeouts so a hung processor fails
// the call instead of stalling the request.
package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/settlement"
)

// ErrWebhookVerification is returned when a webhook's signature or
// header check fails. The delivery is rejected before the settlement
// machine ever sees it.
var ErrWebhookVerification = errors.New("webhook verification failed")

// ErrProcessorUnavailable is returned when payment initiation fails or
// times out. Order creation surfaces it as a failed order; no order may
// claim a payment was initiated when it was not.
var ErrProcessorUnavailable = errors.New("payment processor unavailable")

// Initiator starts a payment for an order's total and returns the
// client-facing token. Both processor clients satisfy it.
type Initiator interface {
	Initiate(ctx context.Context, amount float64, orderID uint64) (*Initiation, error)
}

// Initiation is the client-facing result of starting a payment: Stripe
// returns a client secret, PayPal an approval URL.
type Initiation struct {
	Provider     model.PaymentMethod `json:"provider"`
	PaymentID    string              `json:"payment_id"`
	ClientSecret string              `json:"client_secret,omitempty"`
	ApprovalURL  string              `json:"approval_url,omitempty"`
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// event translation helpers shared by both webhook parsers.

func captureEvent(processor model.PaymentMethod, externalID string, orderID uint64) settlement.PaymentEvent {
	return settlement.PaymentEvent{
		Processor:       processor,
		ExternalEventID: externalID,
		OrderID:         orderID,
		Outcome:         settlement.OutcomeCaptured,
	}
}

func failureEvent(processor model.PaymentMethod, externalID string, orderID uint64) settlement.PaymentEvent {
	return settlement.PaymentEvent{
		Processor:       processor,
		ExternalEventID: externalID,
		OrderID:         orderID,
		Outcome:         settlement.OutcomeFailed,
	}
}
