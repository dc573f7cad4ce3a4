package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const accountIDAttempts = 5

type CustomerService struct {
	db           *sql.DB
	cfg          ledger.Config
	clock        ledger.Clock
	audit        AuditLogger
	validator    *ValidationHelper
	newAccountID func() string
	log          *logrus.Entry
}

func NewCustomerService(db *sql.DB, cfg ledger.Config, clock ledger.Clock, auditLogger AuditLogger) *CustomerService {
	return &CustomerService{
		db:           db,
		cfg:          cfg,
		clock:        clock,
		audit:        auditLogger,
		validator:    NewValidationHelper(),
		newAccountID: generateAccountID,
		log:          logging.Component("customers"),
	}
}

// RegisterCustomerRequest represents the registration payload
// @Description New card holder
type RegisterCustomerRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100" example:"Lena"`
	LastName  string `json:"lastName" validate:"required,max=100" example:"Vogel"`
	Email     string `json:"email" validate:"omitempty,email" example:"lena@example.com"`
	Phone     string `json:"phone" validate:"omitempty,max=40" example:"+49 170 1234567"`
	DogName   string `json:"dogName" validate:"omitempty,max=100" example:"Fido"`
}

// UpdateCustomerRequest changes profile fields. Omitted fields are kept.
type UpdateCustomerRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Phone     *string `json:"phone" validate:"omitempty,max=40"`
	DogName   *string `json:"dogName" validate:"omitempty,max=100"`
}

// CustomerListResponse is one page of customers
type CustomerListResponse struct {
	Customers []models.Customer `json:"customers"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// Create inserts a new customer with zero balance and the training
// template. It retries with a fresh account number on collision.
func (s *CustomerService) Create(ctx context.Context, req RegisterCustomerRequest) (models.Customer, error) {
	now := s.clock.Now()
	c := models.Customer{
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:            strings.TrimSpace(req.Phone),
		DogName:          strings.TrimSpace(req.DogName),
		Balance:          decimal.Zero,
		Level:            models.LevelEinsteiger,
		TrainingProgress: s.cfg.Template(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for attempt := 0; attempt < accountIDAttempts; attempt++ {
		c.ID = s.newAccountID()
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO customers ("+customerColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) ON CONFLICT (id) DO NOTHING",
			c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.DogName,
			c.Balance, c.TotalTransactions, string(c.Level), c.TrainingProgress, c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return models.Customer{}, fmt.Errorf("insert customer: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			return c, nil
		}
		s.log.WithField("account_id", c.ID).Warn("Account number taken, retrying")
	}
	return models.Customer{}, fmt.Errorf("no free account number after %d attempts", accountIDAttempts)
}

// Register creates a customer card
// @Summary Register customer
// @Description Register a card holder with zero balance at level Einsteiger
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterCustomerRequest true "Customer"
// @Success 201 {object} models.Customer
// @Failure 400 {object} ErrorResponse
// @Router /customers [post]
func (s *CustomerService) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterCustomerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	c, err := s.Create(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("Customer registration failed")
		SendErrorResponse(w, "Failed to register customer", http.StatusInternalServerError, nil)
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	s.audit.LogOperation(employeeName(actor), c.ID, "CUSTOMER_CREATED", c.FullName())
	s.log.WithField("customer_id", c.ID).Info("Customer registered")

	WriteJSON(w, http.StatusCreated, c)
}

// Get returns a customer snapshot
// @Summary Get customer
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer account number"
// @Success 200 {object} models.Customer
// @Failure 404 {object} ErrorResponse
// @Router /customers/{id} [get]
func (s *CustomerService) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := getCustomer(r.Context(), s.db, id, false)
	if errors.Is(err, ErrCustomerNotFound) {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("customer_id", id).Error("Customer lookup failed")
		SendErrorResponse(w, "Failed to fetch customer", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, c)
}

// likeEscaper makes LIKE wildcards in search input match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List searches customers
// @Summary List customers
// @Description Search by account number prefix or name
// @Tags customers
// @Produce json
// @Security BearerAuth
// @Param search query string false "Account number prefix or name fragment"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} CustomerListResponse
// @Router /customers [get]
func (s *CustomerService) List(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	limit, offset := pagination(r)

	rows, err := s.db.QueryContext(r.Context(),
		`SELECT `+customerColumns+` FROM customers
		 WHERE $1 = '' OR id LIKE $1 || '%' ESCAPE '\' OR lower(first_name || ' ' || last_name) LIKE '%' || lower($1) || '%' ESCAPE '\'
		 ORDER BY lower(last_name), lower(first_name), id
		 LIMIT $2 OFFSET $3`,
		likeEscaper.Replace(search), limit, offset)
	if err != nil {
		s.log.WithError(err).Error("Listing customers failed")
		SendErrorResponse(w, "Failed to list customers", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			s.log.WithError(err).Error("Scanning customer failed")
			SendErrorResponse(w, "Failed to list customers", http.StatusInternalServerError, nil)
			return
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		s.log.WithError(err).Error("Listing customers failed")
		SendErrorResponse(w, "Failed to list customers", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, CustomerListResponse{Customers: customers, Limit: limit, Offset: offset})
}

// Update changes profile fields of a customer
// @Summary Update customer profile
// @Description Balance, level and training progress are only changed by bookings
// @Tags customers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Customer account number"
// @Param request body UpdateCustomerRequest true "Profile fields"
// @Success 200 {object} models.Customer
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /customers/{id} [patch]
func (s *CustomerService) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateCustomerRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}

	c, err := scanCustomer(s.db.QueryRowContext(r.Context(),
		`UPDATE customers SET
		   first_name = COALESCE($1, first_name),
		   last_name = COALESCE($2, last_name),
		   email = COALESCE($3, email),
		   phone = COALESCE($4, phone),
		   dog_name = COALESCE($5, dog_name),
		   updated_at = $6
		 WHERE id = $7
		 RETURNING `+customerColumns,
		req.FirstName, req.LastName, req.Email, req.Phone, req.DogName, s.clock.Now(), id))
	if errors.Is(err, sql.ErrNoRows) {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("customer_id", id).Error("Customer update failed")
		SendErrorResponse(w, "Failed to update customer", http.StatusInternalServerError, nil)
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	s.audit.LogOperation(employeeName(actor), id, "CUSTOMER_UPDATED", "profile")

	WriteJSON(w, http.StatusOK, c)
}

// generateAccountID returns a 10-digit account number without a leading zero
func generateAccountID() string {
	const digits = "0123456789"
	b := make([]byte, 10)
	b[0] = digits[1+rand.Intn(9)]
	for i := 1; i < len(b); i++ {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
