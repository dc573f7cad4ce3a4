// Package ledger computes balance bookings and training progression for a
// customer card. It is pure: it takes a customer snapshot and returns a new
// snapshot plus the transaction record, leaving persistence to the caller.
package ledger

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
)

// RequestType is the direction of a requested booking
type RequestType string

const (
	Credit RequestType = "credit"
	Debit  RequestType = "debit"
)

// Config holds the pricing and template settings of the school
type Config struct {
	// SessionPrice is the price of one training session.
	SessionPrice decimal.Decimal
	// SessionMarker is the description that marks a debit as a session
	// when MatchSessionMarker is enabled.
	SessionMarker      string
	MatchSessionMarker bool
	// RechargeDescription is used for credits booked without a description.
	RechargeDescription string
	// RequiredHours per level for newly registered customers.
	RequiredHours map[models.Level]int
}

// DefaultConfig returns the school's standard settings
func DefaultConfig() Config {
	return Config{
		SessionPrice:        decimal.RequireFromString("18.00"),
		SessionMarker:       "Trails",
		MatchSessionMarker:  true,
		RechargeDescription: "Aufladung",
		RequiredHours: map[models.Level]int{
			models.LevelEinsteiger:       6,
			models.LevelGrundlagen:       12,
			models.LevelFortgeschrittene: 18,
			models.LevelMasterclass:      24,
			models.LevelExpert:           models.ExpertDisplayHours,
		},
	}
}

// Template returns the training progress of a new customer
func (c Config) Template() models.TrainingProgress {
	return models.NewTrainingProgress(c.RequiredHours)
}

// Request is a booking as entered by an employee
type Request struct {
	Type        RequestType
	Amount      string
	Description string
	Employee    string
	// Session marks a debit explicitly as one completed training session.
	Session bool
}

// Result of a successful booking
type Result struct {
	Customer      models.Customer
	Transaction   models.Transaction
	Progress      Step
	PreviousLevel models.Level
}

type Option func(*Ledger)

// WithClock sets the clock used to timestamp transactions
func WithClock(clock Clock) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithIDGenerator sets the generator for transaction IDs
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) { l.newID = fn }
}

type Ledger struct {
	cfg   Config
	clock Clock
	newID func() string
}

func New(cfg Config, opts ...Option) *Ledger {
	l := &Ledger{
		cfg:   cfg,
		clock: SystemClock,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config returns the ledger settings
func (l *Ledger) Config() Config {
	return l.cfg
}

// IsSessionDebit reports whether a debit counts as one training session.
func (l *Ledger) IsSessionDebit(amount decimal.Decimal, description string, explicit bool) bool {
	if explicit {
		return true
	}
	return l.cfg.MatchSessionMarker &&
		description == l.cfg.SessionMarker &&
		amount.Equal(l.cfg.SessionPrice)
}

// Apply books req against customer. On error the returned result is nil and
// the snapshot passed in is untouched; on success the input is also left
// unmodified and the new state is returned.
func (l *Ledger) Apply(customer models.Customer, req Request) (*Result, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	var txType models.TransactionType

	switch req.Type {
	case Credit:
		txType = models.TransactionRecharge
		if description == "" {
			description = l.cfg.RechargeDescription
		}
		if customer.Balance.Add(amount).GreaterThanOrEqual(MaxBalance) {
			return nil, &ValidationError{Field: "amount", Reason: "would raise the balance above the maximum"}
		}
	case Debit:
		txType = models.TransactionDebit
		if description == "" && req.Session {
			description = l.cfg.SessionMarker
		}
		if description == "" {
			return nil, &ValidationError{Field: "description", Reason: "is required for debits"}
		}
		if amount.GreaterThan(customer.Balance) {
			return nil, &InsufficientBalanceError{Balance: customer.Balance, Amount: amount}
		}
	default:
		return nil, &ValidationError{Field: "type", Reason: "must be credit or debit"}
	}

	updated := customer.Clone()
	if txType == models.TransactionRecharge {
		updated.Balance = customer.Balance.Add(amount)
	} else {
		updated.Balance = customer.Balance.Sub(amount)
	}
	updated.TotalTransactions++

	result := &Result{PreviousLevel: customer.Level}

	session := txType == models.TransactionDebit && l.IsSessionDebit(amount, description, req.Session)
	if session {
		result.Progress = Advance(&updated)
	}

	now := l.clock.Now()
	updated.UpdatedAt = now

	result.Customer = updated
	result.Transaction = models.Transaction{
		ID:            l.newID(),
		CustomerID:    customer.ID,
		Type:          txType,
		Description:   description,
		Amount:        amount,
		BalanceBefore: customer.Balance,
		BalanceAfter:  updated.Balance,
		Session:       session,
		Employee:      req.Employee,
		CreatedAt:     now,
	}
	return result, nil
}
