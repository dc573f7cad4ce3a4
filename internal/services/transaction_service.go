package services

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/sirupsen/logrus"
)

// TransactionService serves the read side of the transaction log
type TransactionService struct {
	db     *sql.DB
	policy authz.Policy
	log    *logrus.Entry
}

func NewTransactionService(db *sql.DB, policy authz.Policy) *TransactionService {
	return &TransactionService{
		db:     db,
		policy: policy,
		log:    logging.Component("transactions"),
	}
}

// TransactionListResponse is one page of a customer's transactions
type TransactionListResponse struct {
	CustomerID   string               `json:"customerId"`
	Transactions []models.Transaction `json:"transactions"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

// ListByCustomer lists a customer's transactions
// @Summary List customer transactions
// @Description Transactions of one customer, newest first
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer account number"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} TransactionListResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{id}/transactions [get]
func (s *TransactionService) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	limit, offset := pagination(r)

	var exists bool
	err := s.db.QueryRowContext(r.Context(),
		"SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)", customerID).Scan(&exists)
	if err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Error("Customer lookup failed")
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	if !exists {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}

	transactions, err := recentTransactions(r.Context(), s.db, customerID, limit, offset)
	if err != nil {
		s.log.WithError(err).WithField("customer_id", customerID).Error("Listing transactions failed")
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, TransactionListResponse{
		CustomerID:   customerID,
		Transactions: transactions,
		Limit:        limit,
		Offset:       offset,
	})
}

// Get returns one transaction
// @Summary Get transaction
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /transactions/{txId} [get]
func (s *TransactionService) Get(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txId")
	if _, err := uuid.Parse(txID); err != nil {
		SendErrorResponse(w, ErrTransactionNotFound.Error(), http.StatusNotFound, nil)
		return
	}

	t, err := scanTransaction(s.db.QueryRowContext(r.Context(),
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1", txID))
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, ErrTransactionNotFound.Error(), http.StatusNotFound, nil)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("transaction_id", txID).Error("Transaction lookup failed")
		SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}

	// the route carries no customer id, so ownership is checked here
	actor, _ := authz.ActorFrom(r.Context())
	if s.policy.Authorize(actor, authz.TransactionRead, authz.Resource{CustomerID: t.CustomerID}) == authz.Deny {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	WriteJSON(w, http.StatusOK, t)
}
