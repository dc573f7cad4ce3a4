package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/sirupsen/logrus"
)

// Postgres error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var (
	errEmailTaken      = errors.New("email already exists")
	errUnknownCustomer = errors.New("linked customer does not exist")
)

// UserService administers login accounts
type UserService struct {
	db        *sql.DB
	clock     ledger.Clock
	audit     AuditLogger
	validator *ValidationHelper
	log       *logrus.Entry
}

func NewUserService(db *sql.DB, clock ledger.Clock, auditLogger AuditLogger) *UserService {
	return &UserService{
		db:        db,
		clock:     clock,
		audit:     auditLogger,
		validator: NewValidationHelper(),
		log:       logging.Component("users"),
	}
}

// CreateUserRequest represents a new login account
// @Description New user. Customer users must be linked to a card.
type CreateUserRequest struct {
	Email      string `json:"email" validate:"required,email" example:"trainer@mantrailing.example"`
	Password   string `json:"password" validate:"required,min=8" example:"s3cret-pass"`
	FirstName  string `json:"firstName" validate:"max=100" example:"Anna"`
	LastName   string `json:"lastName" validate:"max=100" example:"Berger"`
	Role       string `json:"role" validate:"required,oneof=admin staff customer" example:"staff"`
	CustomerID string `json:"customerId" validate:"required_if=Role customer,omitempty,len=10,numeric" example:"4821937560"`
}

// UpdateRoleRequest changes a user's role
type UpdateRoleRequest struct {
	Role       string `json:"role" validate:"required,oneof=admin staff customer" example:"customer"`
	CustomerID string `json:"customerId" validate:"required_if=Role customer,omitempty,len=10,numeric"`
}

// Create inserts a user with an argon2id password hash
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (models.User, error) {
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := models.User{
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      models.Role(req.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.CustomerID != "" {
		user.CustomerID = &req.CustomerID
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password, first_name, last_name, role, customer_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		user.Email, hashed, user.FirstName, user.LastName, string(user.Role), nullString(req.CustomerID), now, now).Scan(&user.ID)
	if err != nil {
		return models.User{}, translatePQError(err)
	}
	return user, nil
}

// EnsureAdmin creates the first admin account when no user exists yet
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	user, err := s.Create(ctx, CreateUserRequest{Email: email, Password: password, Role: string(models.RoleAdmin)})
	if err != nil {
		return err
	}
	s.log.WithField("user_id", user.ID).Info("Bootstrap admin created")
	return nil
}

// CreateUser creates a login account
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (s *UserService) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := s.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	s.audit.LogOperation(employeeName(actor), req.CustomerID, "USER_CREATED", fmt.Sprintf("user %d role %s", user.ID, user.Role))

	WriteJSON(w, http.StatusCreated, user)
}

// ListUsers lists login accounts
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Router /users [get]
func (s *UserService) ListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		s.log.WithError(err).Error("Listing users failed")
		SendErrorResponse(w, "Failed to list users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			s.log.WithError(err).Error("Scanning user failed")
			SendErrorResponse(w, "Failed to list users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		s.log.WithError(err).Error("Listing users failed")
		SendErrorResponse(w, "Failed to list users", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, users)
}

// UpdateRole changes the role of a user
// @Summary Change user role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Param request body UpdateRoleRequest true "Role"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId}/role [patch]
func (s *UserService) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "userId"))
	if err != nil {
		SendErrorResponse(w, ErrUserNotFound.Error(), http.StatusNotFound, nil)
		return
	}

	var req UpdateRoleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := scanUser(s.db.QueryRowContext(r.Context(),
		`UPDATE users SET role = $1, customer_id = $2, updated_at = $3 WHERE id = $4 RETURNING `+userColumns,
		req.Role, nullString(req.CustomerID), s.clock.Now(), id))
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrUserNotFound
	}
	if err != nil {
		s.writeError(w, translatePQError(err))
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	s.audit.LogOperation(employeeName(actor), req.CustomerID, "USER_ROLE_CHANGED", fmt.Sprintf("user %d role %s", user.ID, user.Role))

	WriteJSON(w, http.StatusOK, user)
}

// DeleteUser removes a login account
// @Summary Delete user
// @Tags users
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [delete]
func (s *UserService) DeleteUser(w http.ResponseWriter, r *http.Request) {
	rawID := chi.URLParam(r, "userId")
	id, err := strconv.Atoi(rawID)
	if err != nil {
		SendErrorResponse(w, ErrUserNotFound.Error(), http.StatusNotFound, nil)
		return
	}

	actor, _ := authz.ActorFrom(r.Context())
	if actor.UserID == rawID {
		SendErrorResponse(w, "Cannot delete your own account", http.StatusBadRequest, nil)
		return
	}

	res, err := s.db.ExecContext(r.Context(), "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		SendErrorResponse(w, ErrUserNotFound.Error(), http.StatusNotFound, nil)
		return
	}

	s.audit.LogOperation(employeeName(actor), "", "USER_DELETED", fmt.Sprintf("user %d", id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *UserService) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errEmailTaken):
		SendErrorResponse(w, "Email already exists", http.StatusConflict, nil)
	case errors.Is(err, errUnknownCustomer):
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest,
			&ledger.ValidationError{Field: "customerId", Reason: errUnknownCustomer.Error()})
	case errors.Is(err, ErrUserNotFound):
		SendErrorResponse(w, ErrUserNotFound.Error(), http.StatusNotFound, nil)
	default:
		s.log.WithError(err).Error("User operation failed")
		SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
	}
}

func translatePQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return errEmailTaken
		case pqForeignKeyViolation:
			return errUnknownCustomer
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
