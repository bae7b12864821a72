package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/settlement"
)

// DefaultStripeAPIBase is Stripe's live API endpoint. Tests point the
// client at an httptest server instead.
const DefaultStripeAPIBase = "https://api.stripe.com"

// signatureTolerance bounds how old a webhook timestamp may be before the
// delivery is rejected as a replay.
const signatureTolerance = 5 * time.Minute

// StripeClient initiates payment intents and verifies webhook deliveries
// signed with the endpoint's webhook secret.
type StripeClient struct {
	secretKey     string
	webhookSecret string
	apiBase       string
	http          *http.Client

	// now is swappable in tests exercising the timestamp tolerance.
	now func() time.Time
}

func NewStripeClient(secretKey, webhookSecret, apiBase string) *StripeClient {
	if apiBase == "" {
		apiBase = DefaultStripeAPIBase
	}
	return &StripeClient{
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		apiBase:       strings.TrimRight(apiBase, "/"),
		http:          newHTTPClient(),
		now:           time.Now,
	}
}

// Initiate creates a payment intent for the order's total. The amount is
// converted to integer cents at this boundary; the order ID rides along
// as metadata so the webhook can route the confirmation back.
func (s *StripeClient) Initiate(ctx context.Context, amount float64, orderID uint64) (*Initiation, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(math.Round(amount*100)), 10))
	form.Set("currency", "usd")
	form.Set("metadata[order_id]", strconv.FormatUint(orderID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.apiBase+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		log.Printf("stripe: payment intent request failed: %v", err)
		return nil, ErrProcessorUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("stripe: payment intent rejected: status=%d body=%s", resp.StatusCode, body)
		return nil, ErrProcessorUnavailable
	}

	var intent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, ErrProcessorUnavailable
	}
	return &Initiation{
		Provider:     model.PaymentMethodStripe,
		PaymentID:    intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the raw body:
// HMAC-SHA256 over "<t>.<payload>" keyed with the webhook secret, compared
// in constant time against every v1 candidate, with a replay tolerance on
// the timestamp.
func (s *StripeClient) VerifyWebhook(payload []byte, sigHeader string) error {
	var (
		timestamp  string
		candidates []string
	)
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrWebhookVerification
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrWebhookVerification
	}
	age := s.now().UTC().Sub(time.Unix(ts, 0).UTC())
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrWebhookVerification
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrWebhookVerification
}

// ParseWebhook translates a verified Stripe event into the internal
// PaymentEvent shape. Event types outside the two settlement outcomes,
// and events without an order_id in their metadata, are skipped
// (ok=false) rather than failed; Stripe sends many event types this
// endpoint does not consume.
func (s *StripeClient) ParseWebhook(payload []byte) (settlement.PaymentEvent, bool, error) {
	var event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return settlement.PaymentEvent{}, false, err
	}

	var outcome settlement.Outcome
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = settlement.OutcomeCaptured
	case "payment_intent.payment_failed":
		outcome = settlement.OutcomeFailed
	default:
		return settlement.PaymentEvent{}, false, nil
	}

	orderID, err := strconv.ParseUint(event.Data.Object.Metadata["order_id"], 10, 64)
	if err != nil {
		log.Printf("stripe: event %s has no usable order_id metadata", event.ID)
		return settlement.PaymentEvent{}, false, nil
	}
	if outcome == settlement.OutcomeCaptured {
		return captureEvent(model.PaymentMethodStripe, event.ID, orderID), true, nil
	}
	return failureEvent(model.PaymentMethodStripe, event.ID, orderID), true, nil
}
