package service

import (
	"errors"

	"commissionledger/internal/repository"
)

// Validation errors: the request can never succeed as sent.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidPeriod       = errors.New("invalid billing period")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRate         = errors.New("invalid rate")
	ErrInvalidID           = errors.New("invalid id")
	ErrMandateNotUsable    = errors.New("payee has no usable mandate")
	ErrReasonRequired      = errors.New("a reason is required")
	ErrInvalidWebhook      = errors.New("malformed webhook payload")
	ErrNothingToCollect    = errors.New("no outstanding invoices to collect")
	ErrUnknownMandateState = errors.New("mandate status is not a provider state")
)

// Conflict errors: the target is already in a terminal or unexpected state. Not retryable.
var (
	ErrCommissionAlreadyRecorded = errors.New("commission already recorded for booking")
	ErrCommissionStateConflict   = errors.New("commission is not in the expected status")
	ErrInvoiceAlreadyCancelled   = errors.New("invoice is already cancelled")
	ErrInvoiceNotPosted          = errors.New("invoice has no issuance entry")
	ErrEntryAlreadyReversed      = errors.New("entry is already reversed")
	ErrBatchAlreadyRunning       = errors.New("invoice batch is already running")
)

// External dependency errors.
var (
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// ErrNotFound is re-exported so handlers need not import the repository package.
var ErrNotFound = repository.ErrNotFound

func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidInput, ErrInvalidPeriod, ErrInvalidAmount, ErrInvalidRate, ErrInvalidID,
		ErrMandateNotUsable, ErrReasonRequired, ErrInvalidWebhook, ErrNothingToCollect, ErrUnknownMandateState} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsConflict(err error) bool {
	for _, target := range []error{ErrCommissionAlreadyRecorded, ErrCommissionStateConflict,
		ErrInvoiceAlreadyCancelled, ErrInvoiceNotPosted, ErrEntryAlreadyReversed, ErrBatchAlreadyRunning} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
