// Package gocardless adapts the GoCardless Pro SDK to the ledger: payment
// creation against a mandate and webhook verification.
package gocardless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gc "github.com/gocardless/gocardless-pro-go/v4"
	"github.com/shopspring/decimal"
)

const (
	SandboxURL = gc.SandboxEndpoint
	LiveURL    = gc.LiveEndpoint
)

// CreatePaymentRequest describes one direct-debit collection against a mandate.
type CreatePaymentRequest struct {
	AmountCents    int64
	Currency       string
	MandateID      string
	Description    string
	Reference      string
	IdempotencyKey string
	Metadata       map[string]string
}

// Payment is the subset of the provider's payment resource the ledger keeps.
type Payment struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Client struct {
	service *gc.Service
}

// NewClient picks the live API for environment "live" and the sandbox otherwise.
func NewClient(token, environment string, timeout time.Duration) (*Client, error) {
	endpoint := SandboxURL
	if environment == "live" {
		endpoint = LiveURL
	}
	return NewClientWithBaseURL(token, endpoint, &http.Client{Timeout: timeout})
}

func NewClientWithBaseURL(token, baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	config, err := gc.NewConfig(token, gc.WithEndpoint(baseURL), gc.WithClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("gocardless: invalid config: %w", err)
	}
	service, err := gc.New(config)
	if err != nil {
		return nil, fmt.Errorf("gocardless: failed to create client: %w", err)
	}
	return &Client{service: service}, nil
}

// CreatePayment posts a new payment. The idempotency key makes retries return the same payment.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	if req.MandateID == "" {
		return nil, fmt.Errorf("gocardless: mandate id is required")
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("gocardless: amount must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	params := gc.PaymentCreateParams{
		Amount:      int(req.AmountCents),
		Currency:    currency,
		Description: req.Description,
		Reference:   req.Reference,
		Links:       gc.PaymentCreateParamsLinks{Mandate: req.MandateID},
	}
	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]interface{}, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}

	var opts []gc.RequestOption
	if req.IdempotencyKey != "" {
		opts = append(opts, gc.WithIdempotencyKey(req.IdempotencyKey))
	}

	p, err := c.service.Payments.Create(ctx, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("gocardless: create payment: %w", err)
	}
	if p == nil || p.Id == "" {
		return nil, fmt.Errorf("gocardless: response carried no payment id")
	}
	return &Payment{ID: p.Id, Status: p.Status, Amount: int64(p.Amount), Currency: p.Currency}, nil
}

// ToCents converts a euro amount to the integer minor units the API expects.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// NormalizePaymentStatus folds the provider's pre-submission states into the
// ledger's payment lifecycle.
func NormalizePaymentStatus(status string) string {
	switch status {
	case "pending_customer_approval", "pending_submission":
		return "created"
	case "customer_approval_denied":
		return "failed"
	}
	return status
}
