package services

import (
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mantrailing/cardservice/internal/authz"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

// MockAuditLogger records audit calls
type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogTransaction(tx models.Transaction, previousLevel, level models.Level) {
	m.Called(tx, previousLevel, level)
}

func (m *MockAuditLogger) LogRejected(customerID, actor string, err error) {
	m.Called(customerID, actor, err)
}

func (m *MockAuditLogger) LogOperation(actor, customerID, operation, details string) {
	m.Called(actor, customerID, operation, details)
}

// decimalArg matches a decimal query argument by value, ignoring scale
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	var raw string
	switch x := v.(type) {
	case string:
		raw = x
	case []byte:
		raw = string(x)
	default:
		return false
	}
	got, err := decimal.NewFromString(raw)
	return err == nil && got.Equal(decimal.RequireFromString(string(d)))
}

// progressArg matches a training progress argument by its current section
type progressArg struct {
	current   models.Level
	completed int
}

func (p progressArg) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var progress models.TrainingProgress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return false
	}
	idx := progress.CurrentIndex()
	if idx < 0 {
		return false
	}
	return progress[idx].Name == p.current && progress[idx].CompletedHours == p.completed
}

var customerCols = []string{"id", "first_name", "last_name", "email", "phone", "dog_name",
	"balance", "total_transactions", "level", "training_progress", "created_at", "updated_at"}

var transactionCols = []string{"id", "customer_id", "type", "description", "amount",
	"balance_before", "balance_after", "session", "employee", "created_at"}

func progressJSON(t *testing.T, p models.TrainingProgress) []byte {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

// customerRow returns a customer row on the default template with
// completed hours in the current Einsteiger section
func customerRow(t *testing.T, id, balance string, total, completed int) *sqlmock.Rows {
	t.Helper()
	progress := ledger.DefaultConfig().Template()
	progress[0].CompletedHours = completed
	return sqlmock.NewRows(customerCols).AddRow(id, "Lena", "Vogel", "lena@example.com", "", "Fido",
		balance, total, string(models.LevelEinsteiger), progressJSON(t, progress), testNow, testNow)
}

// withActor injects the authenticated caller like the auth middleware does
func withActor(actor authz.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
		})
	}
}

func setTestAuthConfig(t *testing.T) {
	t.Helper()
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 1)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 1024)
	viper.Set("argon2.threads", 1)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
	t.Cleanup(viper.Reset)
}

var (
	staffActor = authz.Actor{UserID: "2", Email: "trainer@mantrailing.example", Role: models.RoleStaff}
	adminActor = authz.Actor{UserID: "1", Email: "admin@mantrailing.example", Role: models.RoleAdmin}
)
