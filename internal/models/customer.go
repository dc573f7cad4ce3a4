package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a card holder of the school. ID is the account number printed
// on the card.
type Customer struct {
	ID                string           `json:"id" db:"id"`
	FirstName         string           `json:"firstName" db:"first_name"`
	LastName          string           `json:"lastName" db:"last_name"`
	Email             string           `json:"email" db:"email"`
	Phone             string           `json:"phone" db:"phone"`
	DogName           string           `json:"dogName" db:"dog_name"`
	Balance           decimal.Decimal  `json:"balance" db:"balance"`
	TotalTransactions int              `json:"totalTransactions" db:"total_transactions"`
	Level             Level            `json:"level" db:"level"`
	TrainingProgress  TrainingProgress `json:"trainingProgress" db:"training_progress"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy of the customer
func (c Customer) Clone() Customer {
	c.TrainingProgress = c.TrainingProgress.Clone()
	return c
}

// FullName joins first and last name
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	if c.FirstName == "" {
		return c.LastName
	}
	return c.FirstName + " " + c.LastName
}
