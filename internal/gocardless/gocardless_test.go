package gocardless

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentSendsMandateAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "invoice-42", r.Header.Get("Idempotency-Key"))

		var body struct {
			Payments struct {
				Amount   int64             `json:"amount"`
				Currency string            `json:"currency"`
				Links    map[string]string `json:"links"`
				Metadata map[string]string `json:"metadata"`
			} `json:"payments"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(7140), body.Payments.Amount)
		assert.Equal(t, "EUR", body.Payments.Currency)
		assert.Equal(t, "MD123", body.Payments.Links["mandate"])
		assert.Equal(t, "INV-2024-00001", body.Payments.Metadata["invoice_number"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"payments":{"id":"PM123","status":"pending_submission","amount":7140,"currency":"EUR"}}`))
	}))
	defer srv.Close()

	c, err := NewClientWithBaseURL("token-1", srv.URL, srv.Client())
	require.NoError(t, err)
	p, err := c.CreatePayment(context.Background(), CreatePaymentRequest{
		AmountCents:    ToCents(decimal.RequireFromString("71.40")),
		MandateID:      "MD123",
		Description:    "Commission INV-2024-00001",
		IdempotencyKey: "invoice-42",
		Metadata:       map[string]string{"invoice_number": "INV-2024-00001"},
	})
	require.NoError(t, err)
	assert.Equal(t, "PM123", p.ID)
	assert.Equal(t, "created", NormalizePaymentStatus(p.Status))
}

func TestCreatePaymentWrapsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"validation_failed","code":422,"message":"mandate is cancelled","errors":[],"request_id":"req-1","documentation_url":""}}`))
	}))
	defer srv.Close()

	c, err := NewClientWithBaseURL("t", srv.URL, srv.Client())
	require.NoError(t, err)
	_, err = c.CreatePayment(context.Background(), CreatePaymentRequest{AmountCents: 100, MandateID: "MD1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gocardless: create payment")
}

func TestCreatePaymentRejectsMissingMandate(t *testing.T) {
	c, err := NewClientWithBaseURL("t", "http://unused", nil)
	require.NoError(t, err)
	_, err = c.CreatePayment(context.Background(), CreatePaymentRequest{AmountCents: 100})
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := Sign(body, "secret")

	assert.True(t, VerifySignature(body, sig, "secret"))
	assert.False(t, VerifySignature(body, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{"events":[{}]}`), sig, "secret"))
	assert.False(t, VerifySignature(body, "not-hex", "secret"))
	assert.False(t, VerifySignature(body, sig, ""))
}

func TestParseEvents(t *testing.T) {
	body := []byte(`{"events":[
		{"id":"EV1","resource_type":"payments","action":"confirmed","links":{"payment":"PM1"},"details":{"cause":"payment_confirmed"}},
		{"id":"EV2","resource_type":"mandates","action":"active","links":{"mandate":"MD1"}}
	]}`)

	events, err := ParseEvents(body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "PM1", events[0].ResourceID())
	assert.Equal(t, "payment_confirmed", events[0].Details["cause"])
	assert.Equal(t, "MD1", events[1].ResourceID())
	assert.Contains(t, string(events[1].Raw), `"EV2"`)

	events, err = ParseEvents([]byte(`{"events":[
		{"resource_type":"payments","action":"failed","links":{"payment":"PM2"}},
		{"id":"EV3"},
		"garbage"
	]}`))
	require.NoError(t, err, "broken entries do not reject the delivery")
	require.Len(t, events, 3)
	assert.Equal(t, "payments:PM2:failed", events[0].Key())
	assert.Equal(t, "EV3", events[1].Key())
	assert.Empty(t, events[1].Malformed)
	assert.NotEmpty(t, events[2].Malformed)
	assert.Contains(t, events[2].Key(), "raw:")

	_, err = ParseEvents([]byte(`not json`))
	assert.Error(t, err)
}
