package gocardless

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	gc "github.com/gocardless/gocardless-pro-go/v4"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "Webhook-Signature"

// statusInvalidToken is what the SDK's webhook handler answers to a bad signature.
const statusInvalidToken = 498

// Resource types
const (
	ResourcePayments = "payments"
	ResourceMandates = "mandates"
)

// Event is one entry of a webhook delivery. An entry that could not be decoded
// keeps its raw JSON and carries the decode error in Malformed.
type Event struct {
	ID           string            `json:"id"`
	CreatedAt    string            `json:"created_at"`
	ResourceType string            `json:"resource_type"`
	Action       string            `json:"action"`
	Links        EventLinks        `json:"links"`
	Details      map[string]string `json:"-"`
	Raw          json.RawMessage   `json:"-"`
	Malformed    string            `json:"-"`
}

type EventLinks struct {
	Payment string `json:"payment"`
	Mandate string `json:"mandate"`
	Payout  string `json:"payout"`
}

// ResourceID is the id of the payment or mandate the event is about.
func (e Event) ResourceID() string {
	switch e.ResourceType {
	case ResourcePayments:
		return e.Links.Payment
	case ResourceMandates:
		return e.Links.Mandate
	}
	return ""
}

// Key identifies the event in the journal. Events without a provider id fall
// back to resource, resource id and action; undecodable ones to a body digest.
func (e Event) Key() string {
	if e.ID != "" {
		return e.ID
	}
	if e.ResourceType != "" || e.Action != "" || e.ResourceID() != "" {
		return fmt.Sprintf("%s:%s:%s", e.ResourceType, e.ResourceID(), e.Action)
	}
	sum := sha256.Sum256(e.Raw)
	return "raw:" + hex.EncodeToString(sum[:12])
}

// VerifySignature runs the body through the SDK's webhook handler and reports
// whether it accepted the signature. An empty secret never verifies.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	handler, err := gc.NewWebhookHandler(secret, gc.EventHandlerFunc(func(gc.Event) error { return nil }))
	if err != nil {
		return false
	}
	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set(SignatureHeader, signature)

	w := &statusRecorder{header: http.Header{}, status: http.StatusOK}
	handler.ServeHTTP(w, req)
	return w.status != statusInvalidToken
}

type statusRecorder struct {
	header http.Header
	status int
	wrote  bool
}

func (r *statusRecorder) Header() http.Header { return r.header }

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return len(b), nil
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wrote {
		return
	}
	r.status = code
	r.wrote = true
}

// Sign returns the signature the provider would send for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvents decodes the {"events": [...]} envelope. Only a body that is not
// such an envelope is an error; each entry is decoded on its own.
func ParseEvents(body []byte) ([]Event, error) {
	var envelope struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("gocardless: malformed webhook body: %w", err)
	}

	events := make([]Event, 0, len(envelope.Events))
	for i, raw := range envelope.Events {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			events = append(events, Event{Raw: raw, Malformed: fmt.Sprintf("event %d: %v", i, err)})
			continue
		}
		var details struct {
			Details map[string]string `json:"details"`
		}
		if json.Unmarshal(raw, &details) == nil {
			ev.Details = details.Details
		}
		ev.Raw = raw
		events = append(events, ev)
	}
	return events, nil
}
