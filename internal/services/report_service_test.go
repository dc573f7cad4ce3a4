package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportService(t *testing.T) (*ReportService, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReportService(db, ledger.FixedClock(testNow)), sqlMock
}

func TestReportService_Period(t *testing.T) {
	s, _ := newTestReportService(t)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		from, to  string
		wantFrom  time.Time
		wantTo    time.Time
		wantField string
	}{
		{name: "defaults to last 30 days", wantFrom: day(2026, 2, 13), wantTo: day(2026, 3, 14)},
		{name: "explicit range", from: "2026-01-01", to: "2026-01-31", wantFrom: day(2026, 1, 1), wantTo: day(2026, 1, 31)},
		{name: "only to", to: "2026-01-31", wantFrom: day(2026, 1, 2), wantTo: day(2026, 1, 31)},
		{name: "bad from", from: "01.01.2026", wantField: "from"},
		{name: "bad to", to: "tomorrow", wantField: "to"},
		{name: "reversed", from: "2026-02-01", to: "2026-01-01", wantField: "from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := s.Period(tt.from, tt.to)
			if tt.wantField != "" {
				var validationErr *ledger.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Equal(t, tt.wantField, validationErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}

func TestReportService_GetSummary(t *testing.T) {
	s, sqlMock := newTestReportService(t)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	sqlMock.ExpectQuery(`SELECT .+ FROM transactions WHERE created_at >= \$1 AND created_at < \$2`).
		WithArgs(from, end).
		WillReturnRows(sqlmock.NewRows([]string{"recharge", "debit", "sessions", "total"}).
			AddRow("250.00", "126.00", 7, 12))
	sqlMock.ExpectQuery(`SELECT level, COUNT\(\*\) FROM customers GROUP BY level`).
		WillReturnRows(sqlmock.NewRows([]string{"level", "count"}).
			AddRow("Einsteiger", 4).
			AddRow("Grundlagen", 2))

	w := httptest.NewRecorder()
	s.GetSummary(w, httptest.NewRequest(http.MethodGet, "/reports/summary?from=2026-03-01&to=2026-03-31", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "2026-03-01", summary.From)
	assert.Equal(t, "2026-03-31", summary.To)
	assert.Equal(t, "250", summary.RechargeTotal.String())
	assert.Equal(t, "126", summary.DebitTotal.String())
	assert.Equal(t, 7, summary.SessionCount)
	assert.Equal(t, 12, summary.TransactionCount)
	assert.Equal(t, 4, summary.LevelCounts[models.LevelEinsteiger])
	assert.Equal(t, 2, summary.LevelCounts[models.LevelGrundlagen])
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestReportService_GetSummaryInvalidDate(t *testing.T) {
	s, sqlMock := newTestReportService(t)

	w := httptest.NewRecorder()
	s.GetSummary(w, httptest.NewRequest(http.MethodGet, "/reports/summary?from=gestern", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Details, "from")
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
