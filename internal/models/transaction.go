package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType carries the sign of a transaction
type TransactionType string

const (
	TransactionRecharge TransactionType = "recharge"
	TransactionDebit    TransactionType = "debit"
)

// Transaction is an immutable entry of a customer's balance log. Amount is
// always positive; Type carries the sign.
type Transaction struct {
	ID            string          `json:"id" db:"id"`
	CustomerID    string          `json:"customerId" db:"customer_id"`
	Type          TransactionType `json:"type" db:"type"`
	Description   string          `json:"description" db:"description"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	BalanceBefore decimal.Decimal `json:"balanceBefore" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter" db:"balance_after"`
	Session       bool            `json:"session" db:"session"`
	Employee      string          `json:"employee" db:"employee"`
	CreatedAt     time.Time       `json:"timestamp" db:"created_at"`
}

// Signed returns the amount with the sign of its type
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
