package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/metrics"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TransactionEventsKey is the Redis list committed bookings are pushed to
const TransactionEventsKey = "transaction_events"

// AuditLogger receives booking and administration events
type AuditLogger interface {
	LogTransaction(tx models.Transaction, previousLevel, level models.Level)
	LogRejected(customerID, actor string, err error)
	LogOperation(actor, customerID, operation, details string)
}

// LedgerService persists ledger bookings. Each booking locks the customer
// row, so concurrent bookings for one card are serialized by Postgres.
type LedgerService struct {
	db        *sql.DB
	redis     *redis.Client
	ledger    *ledger.Ledger
	audit     AuditLogger
	validator *ValidationHelper
	log       *logrus.Entry
}

func NewLedgerService(db *sql.DB, redisClient *redis.Client, l *ledger.Ledger, auditLogger AuditLogger) *LedgerService {
	return &LedgerService{
		db:        db,
		redis:     redisClient,
		ledger:    l,
		audit:     auditLogger,
		validator: NewValidationHelper(),
		log:       logging.Component("ledger"),
	}
}

// TransactionEvent is published after a booking commits
type TransactionEvent struct {
	TransactionID string       `json:"transactionId"`
	CustomerID    string       `json:"customerId"`
	Type          string       `json:"type"`
	Amount        string       `json:"amount"`
	BalanceAfter  string       `json:"balanceAfter"`
	Session       bool         `json:"session"`
	Level         models.Level `json:"level"`
	PromotedFrom  models.Level `json:"promotedFrom,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// Book applies req to the customer inside one database transaction. Ledger
// errors are returned unwrapped; nothing is written when any step fails.
func (s *LedgerService) Book(ctx context.Context, customerID string, req ledger.Request) (*ledger.Result, error) {
	result, err := s.book(ctx, customerID, req)
	if err != nil {
		outcome := "error"
		var validationErr *ledger.ValidationError
		var balanceErr *ledger.InsufficientBalanceError
		switch {
		case errors.As(err, &validationErr):
			outcome = "invalid"
		case errors.As(err, &balanceErr):
			outcome = "insufficient_balance"
		case errors.Is(err, ErrCustomerNotFound):
			outcome = "not_found"
		}
		metrics.RecordTransaction(string(req.Type), outcome)
		if outcome != "error" {
			s.audit.LogRejected(customerID, req.Employee, err)
		}
		return nil, err
	}

	metrics.RecordTransaction(string(req.Type), "success")
	if result.Transaction.Session {
		promotedTo := ""
		if result.Progress.Promoted {
			promotedTo = string(result.Progress.NewLevel)
		}
		metrics.RecordSession(promotedTo)
	}
	s.audit.LogTransaction(result.Transaction, result.PreviousLevel, result.Customer.Level)
	s.publish(ctx, result)

	return result, nil
}

func (s *LedgerService) book(ctx context.Context, customerID string, req ledger.Request) (*ledger.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking: %w", err)
	}
	defer tx.Rollback()

	customer, err := getCustomer(ctx, tx, customerID, true)
	if err != nil {
		return nil, err
	}

	result, err := s.ledger.Apply(customer, req)
	if err != nil {
		return nil, err
	}

	updated := result.Customer
	_, err = tx.ExecContext(ctx,
		`UPDATE customers SET balance = $1, total_transactions = $2, level = $3, training_progress = $4, updated_at = $5
		 WHERE id = $6`,
		updated.Balance, updated.TotalTransactions, string(updated.Level), updated.TrainingProgress, updated.UpdatedAt, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("update customer %s: %w", customerID, err)
	}

	t := result.Transaction
	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
		t.ID, t.CustomerID, string(t.Type), t.Description, t.Amount, t.BalanceBefore, t.BalanceAfter, t.Session, t.Employee, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking: %w", err)
	}
	return result, nil
}

// publish pushes the committed booking for notification consumers. Failures
// are logged only; the booking itself is already durable.
func (s *LedgerService) publish(ctx context.Context, result *ledger.Result) {
	if s.redis == nil {
		return
	}

	t := result.Transaction
	event := TransactionEvent{
		TransactionID: t.ID,
		CustomerID:    t.CustomerID,
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		BalanceAfter:  t.BalanceAfter.StringFixed(2),
		Session:       t.Session,
		Level:         result.Customer.Level,
		Timestamp:     t.CreatedAt,
	}
	if result.PreviousLevel != result.Customer.Level {
		event.PromotedFrom = result.PreviousLevel
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.WithError(err).Error("Failed to encode transaction event")
		return
	}
	if err := s.redis.RPush(ctx, TransactionEventsKey, payload).Err(); err != nil {
		s.log.WithError(err).WithField("transaction_id", t.ID).Warn("Failed to publish transaction event")
	}
}

// flexibleAmount accepts an amount as JSON number or string
type flexibleAmount string

func (a *flexibleAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = flexibleAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = flexibleAmount(n.String())
	return nil
}

// TransactionRequest represents a booking request
// @Description Credit or debit on a customer card
type TransactionRequest struct {
	Type        string         `json:"type" validate:"required,oneof=credit debit" example:"debit"`
	Amount      flexibleAmount `json:"amount" validate:"required" swaggertype:"string" example:"18.00"`
	Description string         `json:"description" validate:"max=200" example:"Trails"`
	Session     bool           `json:"session" example:"true"` // count the debit as one training session
}

// TransactionResponse represents a committed booking
type TransactionResponse struct {
	Customer      models.Customer    `json:"customer"`
	Transaction   models.Transaction `json:"transaction"`
	OldBalance    decimal.Decimal    `json:"oldBalance" swaggertype:"string"`
	NewBalance    decimal.Decimal    `json:"newBalance" swaggertype:"string"`
	Promoted      bool               `json:"promoted"`
	PreviousLevel models.Level       `json:"previousLevel"`
}

// CreateTransaction books a credit or debit
// @Summary Book a transaction
// @Description Credit or debit the customer's balance. A debit flagged as session (or matching the session marker) advances the training progress.
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer account number"
// @Param request body TransactionRequest true "Booking"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /customers/{id}/transactions [post]
func (s *LedgerService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")

	var req TransactionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	result, err := s.Book(r.Context(), customerID, ledger.Request{
		Type:        ledger.RequestType(req.Type),
		Amount:      string(req.Amount),
		Description: req.Description,
		Employee:    employeeName(actor),
		Session:     req.Session,
	})
	if err != nil {
		s.writeBookingError(w, customerID, err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"customer_id":    customerID,
		"transaction_id": result.Transaction.ID,
		"type":           result.Transaction.Type,
		"session":        result.Transaction.Session,
	}).Info("Transaction booked")

	WriteJSON(w, http.StatusCreated, TransactionResponse{
		Customer:      result.Customer,
		Transaction:   result.Transaction,
		OldBalance:    result.Transaction.BalanceBefore,
		NewBalance:    result.Transaction.BalanceAfter,
		Promoted:      result.Progress.Promoted,
		PreviousLevel: result.PreviousLevel,
	})
}

func (s *LedgerService) writeBookingError(w http.ResponseWriter, customerID string, err error) {
	var validationErr *ledger.ValidationError
	var balanceErr *ledger.InsufficientBalanceError
	switch {
	case errors.As(err, &validationErr):
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
	case errors.As(err, &balanceErr):
		SendErrorResponse(w, balanceErr.Error(), http.StatusUnprocessableEntity, nil)
	case errors.Is(err, ErrCustomerNotFound):
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
	default:
		s.log.WithError(err).WithField("customer_id", customerID).Error("Booking failed")
		SendErrorResponse(w, "Failed to book transaction", http.StatusInternalServerError, nil)
	}
}

// employeeName identifies the acting user on the transaction record
func employeeName(actor authz.Actor) string {
	if actor.Email != "" {
		return actor.Email
	}
	if actor.UserID != "" {
		return "user:" + actor.UserID
	}
	return ""
}
