package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MaxBalance is the exclusive upper bound of amounts and balances. Money
// columns are NUMERIC(12,2).
var MaxBalance = decimal.New(1, 10)

// ParseAmount parses a monetary magnitude. A single decimal comma is accepted
// as entered on German keyboards ("18,50").
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "is required"}
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "is not a decimal number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must not have more than two decimal places"}
	}
	if amount.GreaterThanOrEqual(MaxBalance) {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be less than " + MaxBalance.String()}
	}
	return amount, nil
}
