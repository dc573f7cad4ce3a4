package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dashboardRecent = 10

type DashboardService struct {
	db    *sql.DB
	clock ledger.Clock
	log   *logrus.Entry
}

func NewDashboardService(db *sql.DB, clock ledger.Clock) *DashboardService {
	return &DashboardService{
		db:    db,
		clock: clock,
		log:   logging.Component("dashboard"),
	}
}

// Dashboard is the start page of a user. Which fields are set depends on
// the role.
type Dashboard struct {
	Role models.Role `json:"role"`

	// admin
	CustomerCount      *int             `json:"customerCount,omitempty"`
	OutstandingBalance *decimal.Decimal `json:"outstandingBalance,omitempty" swaggertype:"string"`
	UserCount          *int             `json:"userCount,omitempty"`

	// staff
	SessionsToday *int `json:"sessionsToday,omitempty"`

	// customer
	Customer *models.Customer        `json:"customer,omitempty"`
	Current  *models.TrainingSection `json:"currentSection,omitempty"`

	RecentTransactions []models.Transaction `json:"recentTransactions"`
}

// Build assembles the dashboard for actor
func (s *DashboardService) Build(ctx context.Context, actor authz.Actor) (Dashboard, error) {
	d := Dashboard{Role: actor.Role}

	switch actor.Role {
	case models.RoleAdmin:
		var customers, users int
		var outstanding decimal.Decimal
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM customers").Scan(&customers, &outstanding)
		if err != nil {
			return Dashboard{}, fmt.Errorf("count customers: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
			return Dashboard{}, fmt.Errorf("count users: %w", err)
		}
		d.CustomerCount, d.OutstandingBalance, d.UserCount = &customers, &outstanding, &users

	case models.RoleStaff:
		now := s.clock.Now().UTC()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		var sessions int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM transactions WHERE session AND created_at >= $1", startOfDay).Scan(&sessions)
		if err != nil {
			return Dashboard{}, fmt.Errorf("count sessions: %w", err)
		}
		d.SessionsToday = &sessions

	case models.RoleCustomer:
		c, err := getCustomer(ctx, s.db, actor.CustomerID, false)
		if err != nil {
			return Dashboard{}, err
		}
		d.Customer = &c
		if idx := c.TrainingProgress.CurrentIndex(); idx >= 0 {
			section := c.TrainingProgress[idx]
			d.Current = &section
		}
		d.RecentTransactions, err = recentTransactions(ctx, s.db, c.ID, dashboardRecent, 0)
		return d, err

	default:
		return Dashboard{}, fmt.Errorf("unknown role %q", actor.Role)
	}

	var err error
	d.RecentTransactions, err = recentTransactions(ctx, s.db, "", dashboardRecent, 0)
	return d, err
}

// GetDashboard returns the caller's dashboard
// @Summary Dashboard
// @Description Admin: customer and user counts, outstanding balance. Staff: sessions today. Customer: own card and progress. All: recent transactions.
// @Tags dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Dashboard
// @Failure 401 {object} ErrorResponse
// @Router /dashboard [get]
func (s *DashboardService) GetDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFrom(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	d, err := s.Build(r.Context(), actor)
	if errors.Is(err, ErrCustomerNotFound) {
		SendErrorResponse(w, "Customer not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("user_id", actor.UserID).Error("Dashboard failed")
		SendErrorResponse(w, "Failed to load dashboard", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, d)
}
