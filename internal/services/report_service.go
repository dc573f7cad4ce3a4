package services

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/logging"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	reportDateLayout  = "2006-01-02"
	defaultReportDays = 30
)

type ReportService struct {
	db    *sql.DB
	clock ledger.Clock
	log   *logrus.Entry
}

func NewReportService(db *sql.DB, clock ledger.Clock) *ReportService {
	return &ReportService{
		db:    db,
		clock: clock,
		log:   logging.Component("reports"),
	}
}

// Summary aggregates the transaction log over a period. From and To are
// calendar days; To is inclusive.
type Summary struct {
	From             string               `json:"from" example:"2026-01-01"`
	To               string               `json:"to" example:"2026-01-31"`
	RechargeTotal    decimal.Decimal      `json:"rechargeTotal" swaggertype:"string"`
	DebitTotal       decimal.Decimal      `json:"debitTotal" swaggertype:"string"`
	SessionCount     int                  `json:"sessionCount"`
	TransactionCount int                  `json:"transactionCount"`
	LevelCounts      map[models.Level]int `json:"levelCounts"`
}

// Period resolves the from/to query values. Missing bounds default to the
// last defaultReportDays days ending today according to the clock.
func (s *ReportService) Period(fromRaw, toRaw string) (from, to time.Time, err error) {
	now := s.clock.Now().UTC()
	to = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if toRaw != "" {
		if to, err = time.Parse(reportDateLayout, toRaw); err != nil {
			return time.Time{}, time.Time{}, &ledger.ValidationError{Field: "to", Reason: "must be a date like 2006-01-02"}
		}
	}

	from = to.AddDate(0, 0, -(defaultReportDays - 1))
	if fromRaw != "" {
		if from, err = time.Parse(reportDateLayout, fromRaw); err != nil {
			return time.Time{}, time.Time{}, &ledger.ValidationError{Field: "from", Reason: "must be a date like 2006-01-02"}
		}
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, &ledger.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	return from, to, nil
}

// Summarize computes the totals for [from, to]
func (s *ReportService) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	summary := Summary{
		From:        from.Format(reportDateLayout),
		To:          to.Format(reportDateLayout),
		LevelCounts: map[models.Level]int{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(amount) FILTER (WHERE type = 'recharge'), 0),
		   COALESCE(SUM(amount) FILTER (WHERE type = 'debit'), 0),
		   COUNT(*) FILTER (WHERE session),
		   COUNT(*)
		 FROM transactions
		 WHERE created_at >= $1 AND created_at < $2`,
		from, to.AddDate(0, 0, 1)).Scan(&summary.RechargeTotal, &summary.DebitTotal, &summary.SessionCount, &summary.TransactionCount)
	if err != nil {
		return Summary{}, fmt.Errorf("sum transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM customers GROUP BY level")
	if err != nil {
		return Summary{}, fmt.Errorf("count levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int
		if err := rows.Scan(&level, &count); err != nil {
			return Summary{}, fmt.Errorf("scan level count: %w", err)
		}
		summary.LevelCounts[models.Level(level)] = count
	}
	return summary, rows.Err()
}

// GetSummary reports totals over a period
// @Summary Transaction summary
// @Description Recharge and debit totals, session and transaction counts for a period, plus customers per level
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Param from query string false "First day (YYYY-MM-DD), default 30 days before to"
// @Param to query string false "Last day (YYYY-MM-DD), default today"
// @Success 200 {object} Summary
// @Failure 400 {object} ErrorResponse
// @Router /reports/summary [get]
func (s *ReportService) GetSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.Period(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	summary, err := s.Summarize(r.Context(), from, to)
	if err != nil {
		s.log.WithError(err).Error("Report failed")
		SendErrorResponse(w, "Failed to build report", http.StatusInternalServerError, nil)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}
