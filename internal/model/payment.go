package model

// Payment status values as reported by the payment provider
const (
	PaymentCreated     = "created"
	PaymentSubmitted   = "submitted"
	PaymentConfirmed   = "confirmed"
	PaymentPaidOut     = "paid_out"
	PaymentCancelled   = "cancelled"
	PaymentFailed      = "failed"
	PaymentChargedBack = "charged_back"
)

var paymentTransitions = map[string][]string{
	"":               {PaymentCreated, PaymentSubmitted, PaymentConfirmed, PaymentPaidOut, PaymentCancelled, PaymentFailed},
	PaymentCreated:   {PaymentSubmitted, PaymentConfirmed, PaymentPaidOut, PaymentCancelled, PaymentFailed},
	PaymentSubmitted: {PaymentConfirmed, PaymentPaidOut, PaymentCancelled, PaymentFailed},
	PaymentConfirmed: {PaymentPaidOut, PaymentChargedBack},
	PaymentPaidOut:   {PaymentChargedBack},
}

// IsKnownPaymentStatus reports whether s is one of the provider payment states.
func IsKnownPaymentStatus(s string) bool {
	switch s {
	case PaymentCreated, PaymentSubmitted, PaymentConfirmed, PaymentPaidOut,
		PaymentCancelled, PaymentFailed, PaymentChargedBack:
		return true
	}
	return false
}

// CanAdvancePayment reports whether a payment may move from current to next.
func CanAdvancePayment(current, next string) bool {
	for _, allowed := range paymentTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsPaymentCollected is true for the states meaning funds reached the platform.
func IsPaymentCollected(status string) bool {
	return status == PaymentConfirmed || status == PaymentPaidOut
}

// IsPaymentLive is true while a payment may still collect money.
func IsPaymentLive(status string) bool {
	switch status {
	case PaymentCreated, PaymentSubmitted, PaymentConfirmed, PaymentPaidOut:
		return true
	}
	return false
}
