// Package datev renders ledger entries as a DATEV EXTF Buchungsstapel CSV file.
package datev

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ColumnCount is the fixed number of fields in every data row.
	ColumnCount   = 116
	maxTextLength = 60
	bom           = "\ufeff"
	lineEnd       = "\r\n"
)

// Header carries the values of the second EXTF header row.
type Header struct {
	ConsultantNumber string // Beraternummer
	ClientNumber     string // Mandantennummer
	AccountLength    int
	From             time.Time
	To               time.Time
	Label            string
	Initials         string
}

// Booking is one data row. The amount is always booked on the debit side ("S").
type Booking struct {
	Amount         decimal.Decimal
	Currency       string
	DebitAccount   string
	CreditAccount  string
	DocumentDate   time.Time
	DocumentNumber string
	Text           string
}

// Write emits the BOM, the three header rows and one row per booking.
func Write(w io.Writer, h Header, bookings []Booking) error {
	if h.AccountLength == 0 {
		h.AccountLength = 4
	}

	bw := bufio.NewWriter(w)
	lines := make([][]string, 0, len(bookings)+3)
	lines = append(lines,
		[]string{"EXTF", "510", "21", "Buchungsstapel", "7.00"},
		[]string{
			h.ConsultantNumber,
			h.ClientNumber,
			strconv.Itoa(h.From.Year()),
			strconv.Itoa(h.AccountLength),
			FormatDate(h.From),
			FormatDate(h.To),
			h.Label,
			h.Initials,
			"1", // Finanzbuchhaltung
			"0",
		},
		columns[:],
	)
	for _, b := range bookings {
		lines = append(lines, bookingRow(b, h.AccountLength))
	}

	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	for i, fields := range lines {
		if i > 0 {
			if _, err := bw.WriteString(lineEnd); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(joinQuoted(fields)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func bookingRow(b Booking, accountLength int) []string {
	currency := b.Currency
	if currency == "" {
		currency = "EUR"
	}
	row := make([]string, ColumnCount)
	row[0] = b.Amount.Abs().StringFixed(2)
	row[1] = "S"
	row[2] = currency
	row[6] = PadAccount(b.DebitAccount, accountLength)
	row[7] = PadAccount(b.CreditAccount, accountLength)
	row[9] = FormatDate(b.DocumentDate)
	row[10] = b.DocumentNumber
	row[13] = CleanText(b.Text)
	return row
}

func joinQuoted(fields []string) string {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteByte('"')
		sb.WriteString(f)
		sb.WriteByte('"')
	}
	return sb.String()
}

// FormatDate renders DDMMYY.
func FormatDate(t time.Time) string {
	return t.Format("020106")
}

// CleanText strips delimiter and quote characters, flattens line breaks and cuts to 60 characters.
func CleanText(s string) string {
	s = strings.NewReplacer(";", "", `"`, "", "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	runes := []rune(s)
	if len(runes) > maxTextLength {
		runes = runes[:maxTextLength]
	}
	return strings.TrimSpace(string(runes))
}

// PadAccount left-pads an account number with zeros.
func PadAccount(account string, length int) string {
	if len(account) >= length {
		return account
	}
	return strings.Repeat("0", length-len(account)) + account
}
