package service

import (
	"commissionledger/internal/gocardless"
)

// ProviderEvent is one typed provider notification. Unrecognised shapes become
// UnknownEvent and are journaled but not applied.
type ProviderEvent interface {
	EventID() string
	Resource() string
}

type MandateEvent struct {
	ID        string
	Action    string
	MandateID string
}

type PaymentEvent struct {
	ID        string
	Action    string
	PaymentID string
	Cause     string
}

type UnknownEvent struct {
	ID           string
	ResourceType string
	Action       string
	ResourceID   string
}

func (e MandateEvent) EventID() string  { return e.ID }
func (e MandateEvent) Resource() string { return gocardless.ResourceMandates }
func (e PaymentEvent) EventID() string  { return e.ID }
func (e PaymentEvent) Resource() string { return gocardless.ResourcePayments }
func (e UnknownEvent) EventID() string  { return e.ID }
func (e UnknownEvent) Resource() string { return e.ResourceType }

// ClassifyEvent maps a wire event onto its typed variant.
func ClassifyEvent(ev gocardless.Event) ProviderEvent {
	switch {
	case ev.ResourceType == gocardless.ResourceMandates && ev.Links.Mandate != "":
		return MandateEvent{ID: ev.Key(), Action: ev.Action, MandateID: ev.Links.Mandate}
	case ev.ResourceType == gocardless.ResourcePayments && ev.Links.Payment != "":
		return PaymentEvent{ID: ev.Key(), Action: ev.Action, PaymentID: ev.Links.Payment, Cause: ev.Details["cause"]}
	}
	return UnknownEvent{ID: ev.Key(), ResourceType: ev.ResourceType, Action: ev.Action, ResourceID: ev.ResourceID()}
}
