// Package payment builds the bank-transfer payload shown as a QR code at
// checkout and renders it.
package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Payload constants.
const (
	Protocol  = "SPD*1.0"
	Currency  = "CZK"
	Delimiter = "*"
)

// BankingDetails identifies the account that receives QR payments.
type BankingDetails struct {
	AccountNumber string
	RecipientName string
}

// BuildPayload returns the payment payload for amount. The amount is rounded
// to whole currency units. Field values are not escaped, so a delimiter in
// the recipient name or message ends up verbatim in the payload.
func BuildPayload(amount decimal.Decimal, details BankingDetails, message string) string {
	fields := []string{
		Protocol,
		"ACC:" + details.AccountNumber,
		"RN:" + details.RecipientName,
		"AM:" + amount.Round(0).StringFixed(0),
		"CC:" + Currency,
		"MSG:" + message,
	}
	return strings.Join(fields, Delimiter)
}
