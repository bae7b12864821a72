package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/settlement"
)

// fakePayPal serves the token endpoint plus whatever extra routes a test
// registers.
func fakePayPal(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "client-id", user)
		require.Equal(t, "client-secret", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok_abc"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set("Paypal-Transmission-Id", "tx-1")
	h.Set("Paypal-Transmission-Time", "2026-08-31T12:00:00Z")
	h.Set("Paypal-Transmission-Sig", "sig==")
	h.Set("Paypal-Cert-Url", "https://api.paypal.com/cert.pem")
	h.Set("Paypal-Auth-Algo", "SHA256withRSA")
	return h
}

func TestPayPalVerifyWebhook(t *testing.T) {
	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	t.Run("success verdict", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "Bearer tok_abc", r.Header.Get("Authorization"))
			var req map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.JSONEq(t, `"wh-id"`, string(req["webhook_id"]))
			assert.JSONEq(t, string(body), string(req["webhook_event"]))
			json.NewEncoder(w).Encode(map[string]string{"verification_status": "SUCCESS"})
		})
		srv := fakePayPal(t, mux)
		c := NewPayPalClient("client-id", "client-secret", "wh-id", srv.URL)

		assert.NoError(t, c.VerifyWebhook(context.Background(), signedHeaders(), body))
	})

	t.Run("failure verdict", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"verification_status": "FAILURE"})
		})
		srv := fakePayPal(t, mux)
		c := NewPayPalClient("client-id", "client-secret", "wh-id", srv.URL)

		assert.ErrorIs(t, c.VerifyWebhook(context.Background(), signedHeaders(), body),
			ErrWebhookVerification)
	})

	t.Run("missing transmission header", func(t *testing.T) {
		c := NewPayPalClient("client-id", "client-secret", "wh-id", "http://127.0.0.1:1")
		h := signedHeaders()
		h.Del("Paypal-Transmission-Sig")
		// Rejected before any network call is made.
		assert.ErrorIs(t, c.VerifyWebhook(context.Background(), h, body),
			ErrWebhookVerification)
	})

	t.Run("webhook id not configured", func(t *testing.T) {
		c := NewPayPalClient("client-id", "client-secret", "", "http://127.0.0.1:1")
		assert.ErrorIs(t, c.VerifyWebhook(context.Background(), signedHeaders(), body),
			ErrWebhookVerification)
	})

	t.Run("verification endpoint unreachable", func(t *testing.T) {
		c := NewPayPalClient("client-id", "client-secret", "wh-id", "http://127.0.0.1:1")
		assert.ErrorIs(t, c.VerifyWebhook(context.Background(), signedHeaders(), body),
			ErrWebhookVerification)
	})
}

func TestPayPalParseWebhook(t *testing.T) {
	c := NewPayPalClient("client-id", "client-secret", "wh-id", "")

	t.Run("capture completed", func(t *testing.T) {
		payload := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"31"}}`)
		ev, ok, err := c.ParseWebhook(payload)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, settlement.OutcomeCaptured, ev.Outcome)
		assert.Equal(t, uint64(31), ev.OrderID)
		assert.Equal(t, model.PaymentMethodPayPal, ev.Processor)
	})

	t.Run("capture denied", func(t *testing.T) {
		payload := []byte(`{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"custom_id":"31"}}`)
		ev, ok, err := c.ParseWebhook(payload)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, settlement.OutcomeFailed, ev.Outcome)
	})

	t.Run("unrelated event type is skipped", func(t *testing.T) {
		payload := []byte(`{"id":"WH-3","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"custom_id":"31"}}`)
		_, ok, err := c.ParseWebhook(payload)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-numeric custom_id is skipped", func(t *testing.T) {
		payload := []byte(`{"id":"WH-4","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"abc"}}`)
		_, ok, err := c.ParseWebhook(payload)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPayPalInitiate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok_abc", r.Header.Get("Authorization"))
		var req struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				CustomID string `json:"custom_id"`
				Amount   struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "CAPTURE", req.Intent)
		require.Len(t, req.PurchaseUnits, 1)
		assert.Equal(t, "7", req.PurchaseUnits[0].CustomID)
		assert.Equal(t, "19.99", req.PurchaseUnits[0].Amount.Value)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "5O190127TN364715T",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.test/self"},
				{"rel": "approve", "href": "https://example.test/approve"},
			},
		})
	})
	srv := fakePayPal(t, mux)
	c := NewPayPalClient("client-id", "client-secret", "wh-id", srv.URL)

	init, err := c.Initiate(context.Background(), 19.99, 7)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentMethodPayPal, init.Provider)
	assert.Equal(t, "5O190127TN364715T", init.PaymentID)
	assert.Equal(t, "https://example.test/approve", init.ApprovalURL)
}

func TestPayPalInitiateAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewPayPalClient("client-id", "bad-secret", "wh-id", srv.URL)
	_, err := c.Initiate(context.Background(), 10, 1)
	assert.ErrorIs(t, err, ErrProcessorUnavailable)
}
