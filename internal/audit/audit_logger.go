package audit

import (
	"time"

	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/sirupsen/logrus"
)

type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id,omitempty"`
	CustomerID    string    `json:"customer_id"`
	Actor         string    `json:"actor"`
	Amount        string    `json:"amount,omitempty"`
	Status        string    `json:"status"`
	Details       any       `json:"details,omitempty"`
}

// Logger writes audit events for bookings and administrative changes
type Logger struct {
	entry *logrus.Entry
	clock ledger.Clock
}

// NewLogger stamps events that carry no booking time with clock
func NewLogger(clock ledger.Clock) *Logger {
	return &Logger{
		entry: logging.Component("audit"),
		clock: clock,
	}
}

// LogTransaction records a committed booking
func (a *Logger) LogTransaction(tx models.Transaction, previousLevel, level models.Level) {
	details := map[string]any{
		"type":           tx.Type,
		"description":    tx.Description,
		"balance_before": tx.BalanceBefore.StringFixed(2),
		"balance_after":  tx.BalanceAfter.StringFixed(2),
		"session":        tx.Session,
	}
	if previousLevel != level {
		details["promoted_from"] = previousLevel
		details["promoted_to"] = level
	}
	a.log(Event{
		Timestamp:     tx.CreatedAt,
		EventType:     "TRANSACTION",
		TransactionID: tx.ID,
		CustomerID:    tx.CustomerID,
		Actor:         tx.Employee,
		Amount:        tx.Amount.StringFixed(2),
		Status:        "SUCCESS",
		Details:       details,
	})
}

// LogRejected records a booking that was refused before any change
func (a *Logger) LogRejected(customerID, actor string, err error) {
	a.log(Event{
		Timestamp:  a.clock.Now(),
		EventType:  "TRANSACTION",
		CustomerID: customerID,
		Actor:      actor,
		Status:     "REJECTED",
		Details:    map[string]string{"error": err.Error()},
	})
}

// LogOperation records profile and user administration changes
func (a *Logger) LogOperation(actor, customerID, operation, details string) {
	a.log(Event{
		Timestamp:  a.clock.Now(),
		EventType:  operation,
		CustomerID: customerID,
		Actor:      actor,
		Status:     "SUCCESS",
		Details:    map[string]string{"details": details},
	})
}

func (a *Logger) log(event Event) {
	a.entry.WithField("audit", event).Info("AUDIT")
}
