package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/settlement"
)

// DefaultPayPalAPIBase is the sandbox endpoint; production deployments
// override it through config.
const DefaultPayPalAPIBase = "https://api-m.sandbox.paypal.com"

// PayPalClient creates checkout orders and verifies webhook deliveries.
// Verification delegates to PayPal's verify-webhook-signature API rather
// than reimplementing the certificate-chain check locally; anything but
// an explicit SUCCESS verdict rejects the delivery.
type PayPalClient struct {
	clientID     string
	clientSecret string
	webhookID    string
	apiBase      string
	http         *http.Client
}

func NewPayPalClient(clientID, clientSecret, webhookID, apiBase string) *PayPalClient {
	if apiBase == "" {
		apiBase = DefaultPayPalAPIBase
	}
	return &PayPalClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		apiBase:      strings.TrimRight(apiBase, "/"),
		http:         newHTTPClient(),
	}
}

// accessToken exchanges the client credentials for an OAuth token.
func (p *PayPalClient) accessToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: token endpoint returned %d", resp.StatusCode)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Initiate creates a PayPal checkout order carrying our order ID as
// custom_id and returns the buyer approval link.
func (p *PayPalClient) Initiate(ctx context.Context, amount float64, orderID uint64) (*Initiation, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		log.Printf("paypal: auth failed: %v", err)
		return nil, ErrProcessorUnavailable
	}

	body, err := json.Marshal(map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id": strconv.FormatUint(orderID, 10),
			"amount": map[string]string{
				"currency_code": "USD",
				"value":         fmt.Sprintf("%.2f", amount),
			},
		}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/v2/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		log.Printf("paypal: create order failed: %v", err)
		return nil, ErrProcessorUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("paypal: create order rejected: status=%d body=%s", resp.StatusCode, msg)
		return nil, ErrProcessorUnavailable
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, ErrProcessorUnavailable
	}
	out := &Initiation{Provider: model.PaymentMethodPayPal, PaymentID: created.ID}
	for _, l := range created.Links {
		if l.Rel == "approve" {
			out.ApprovalURL = l.Href
		}
	}
	return out, nil
}

// paypalTransmissionHeaders are the header set PayPal signs each webhook
// delivery with. All of them must be present.
var paypalTransmissionHeaders = []string{
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Time",
	"Paypal-Transmission-Sig",
	"Paypal-Cert-Url",
	"Paypal-Auth-Algo",
}

// VerifyWebhook submits the transmission headers and raw body to PayPal's
// verify-webhook-signature API together with our webhook ID. Missing
// headers, transport errors and any verdict other than SUCCESS all reject
// the delivery.
func (p *PayPalClient) VerifyWebhook(ctx context.Context, header http.Header, rawBody []byte) error {
	values := make(map[string]string, len(paypalTransmissionHeaders))
	for _, name := range paypalTransmissionHeaders {
		v := header.Get(name)
		if v == "" {
			log.Printf("paypal: webhook missing header %s", name)
			return ErrWebhookVerification
		}
		values[name] = v
	}
	if p.webhookID == "" {
		log.Printf("paypal: webhook id not configured")
		return ErrWebhookVerification
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		log.Printf("paypal: auth for webhook verification failed: %v", err)
		return ErrWebhookVerification
	}

	body, err := json.Marshal(map[string]any{
		"transmission_id":   values["Paypal-Transmission-Id"],
		"transmission_time": values["Paypal-Transmission-Time"],
		"transmission_sig":  values["Paypal-Transmission-Sig"],
		"cert_url":          values["Paypal-Cert-Url"],
		"auth_algo":         values["Paypal-Auth-Algo"],
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(rawBody),
	})
	if err != nil {
		return ErrWebhookVerification
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiBase+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
	if err != nil {
		return ErrWebhookVerification
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		log.Printf("paypal: webhook verification call failed: %v", err)
		return ErrWebhookVerification
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrWebhookVerification
	}
	var verdict struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return ErrWebhookVerification
	}
	if verdict.VerificationStatus != "SUCCESS" {
		return ErrWebhookVerification
	}
	return nil
}

// ParseWebhook translates a verified PayPal event into the internal
// PaymentEvent shape. Unrelated event types and events without a numeric
// custom_id are skipped (ok=false).
func (p *PayPalClient) ParseWebhook(payload []byte) (settlement.PaymentEvent, bool, error) {
	var event struct {
		ID        string `json:"id"`
		EventType string `json:"event_type"`
		Resource  struct {
			CustomID string `json:"custom_id"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return settlement.PaymentEvent{}, false, err
	}

	var outcome settlement.Outcome
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		outcome = settlement.OutcomeCaptured
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		outcome = settlement.OutcomeFailed
	default:
		return settlement.PaymentEvent{}, false, nil
	}

	orderID, err := strconv.ParseUint(event.Resource.CustomID, 10, 64)
	if err != nil {
		log.Printf("paypal: event %s has no usable custom_id", event.ID)
		return settlement.PaymentEvent{}, false, nil
	}
	if outcome == settlement.OutcomeCaptured {
		return captureEvent(model.PaymentMethodPayPal, event.ID, orderID), true, nil
	}
	return failureEvent(model.PaymentMethodPayPal, event.ID, orderID), true, nil
}
