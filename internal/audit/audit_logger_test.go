package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auditNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func lastEvent(t *testing.T, hook *test.Hook) Event {
	t.Helper()
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	event, ok := entry.Data["audit"].(Event)
	require.True(t, ok)
	return event
}

func TestLogger_UsesClock(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	a := NewLogger(ledger.FixedClock(auditNow))

	t.Run("rejected booking", func(t *testing.T) {
		a.LogRejected("4821937560", "trainer@mantrailing.example", errors.New("insufficient balance"))

		event := lastEvent(t, hook)
		assert.Equal(t, auditNow, event.Timestamp)
		assert.Equal(t, "REJECTED", event.Status)
		assert.Equal(t, map[string]string{"error": "insufficient balance"}, event.Details)
	})

	t.Run("admin operation", func(t *testing.T) {
		a.LogOperation("admin@mantrailing.example", "", "USER_DELETED", "user 9")

		event := lastEvent(t, hook)
		assert.Equal(t, auditNow, event.Timestamp)
		assert.Equal(t, "USER_DELETED", event.EventType)
	})
}

func TestLogger_LogTransaction(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	a := NewLogger(ledger.FixedClock(auditNow))

	booked := auditNow.Add(-time.Minute)
	a.LogTransaction(models.Transaction{
		ID:            "6f1c2b9e-3d0a-4c55-9a7e-2f8b1d4e6a10",
		CustomerID:    "4821937560",
		Type:          models.TransactionDebit,
		Description:   "Trails",
		Amount:        decimal.RequireFromString("18"),
		BalanceBefore: decimal.RequireFromString("50"),
		BalanceAfter:  decimal.RequireFromString("32"),
		Session:       true,
		Employee:      "trainer@mantrailing.example",
		CreatedAt:     booked,
	}, models.LevelEinsteiger, models.LevelGrundlagen)

	event := lastEvent(t, hook)
	assert.Equal(t, booked, event.Timestamp)
	assert.Equal(t, "18.00", event.Amount)
	details, ok := event.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.LevelGrundlagen, details["promoted_to"])
	assert.Equal(t, "32.00", details["balance_after"])
}
