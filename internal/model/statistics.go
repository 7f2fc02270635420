package model

import "github.com/shopspring/decimal"

// InvoiceStats aggregates invoice counts and revenue for one year
type InvoiceStats struct {
	Year             int             `json:"year"`
	CountByStatus    map[string]int  `json:"count_by_status"`
	IssuedRevenue    decimal.Decimal `json:"issued_revenue"` // SENT + PAID totals
	PaidRevenue      decimal.Decimal `json:"paid_revenue"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
}

// AccountBalance is one row of the trial balance
type AccountBalance struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
	Balance decimal.Decimal `json:"balance"` // debit - credit
}
