package service

import (
	"time"

	"commissionledger/internal/config"

	"github.com/shopspring/decimal"
)

// Settings are the accounting constants shared by every ledger operation.
type Settings struct {
	VATRate               decimal.Decimal
	DefaultCommissionRate decimal.Decimal
	Currency              string
	InvoicePrefix         string
	EntryPrefix           string
	AccountBank           string
	AccountReceivables    string
	AccountRevenue        string
	PaymentDueDays        int
	PaymentTimeout        time.Duration
	BatchWorkers          int
	BatchLockTTL          time.Duration
	DATEVConsultantNumber string
	DATEVClientNumber     string
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		VATRate:               cfg.VATRate,
		DefaultCommissionRate: cfg.DefaultCommissionRate,
		Currency:              cfg.Currency,
		InvoicePrefix:         cfg.InvoicePrefix,
		EntryPrefix:           cfg.EntryPrefix,
		AccountBank:           cfg.AccountBank,
		AccountReceivables:    cfg.AccountReceivables,
		AccountRevenue:        cfg.AccountRevenue,
		PaymentDueDays:        cfg.PaymentDueDays,
		PaymentTimeout:        cfg.PaymentTimeout,
		BatchWorkers:          cfg.BatchWorkers,
		BatchLockTTL:          cfg.BatchLockTTL,
		DATEVConsultantNumber: cfg.DATEVConsultantNumber,
		DATEVClientNumber:     cfg.DATEVClientNumber,
	}
}

// DefaultSettings mirrors the config defaults: SKR03 accounts, 19% VAT, EUR.
func DefaultSettings() Settings {
	return Settings{
		VATRate:               decimal.RequireFromString("0.19"),
		DefaultCommissionRate: decimal.RequireFromString("0.049"),
		Currency:              "EUR",
		InvoicePrefix:         "INV",
		EntryPrefix:           "BEL",
		AccountBank:           "1200",
		AccountReceivables:    "1400",
		AccountRevenue:        "8400",
		PaymentDueDays:        14,
		PaymentTimeout:        10 * time.Second,
		BatchWorkers:          1,
		BatchLockTTL:          30 * time.Minute,
		DATEVConsultantNumber: "1001",
		DATEVClientNumber:     "1",
	}
}

// roundMoney rounds half away from zero to cents.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
