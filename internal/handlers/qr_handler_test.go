package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/mantrailing/cardservice/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func qrRouter(t *testing.T, rdb *redis.Client) (http.Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewQRHandler(services.NewCardQRService(db, rdb, ledger.FixedClock(now), 10*time.Minute))
	r := chi.NewRouter()
	r.Get("/customers/{id}/card/qr", h.GetCardQR)
	r.Post("/cards/resolve", h.ResolveCard)
	return r, sqlMock
}

func TestQRHandler_ResolveCard(t *testing.T) {
	rdb, redisMock := redismock.NewClientMock()
	r, sqlMock := qrRouter(t, rdb)

	progress, err := json.Marshal(ledger.DefaultConfig().Template())
	require.NoError(t, err)

	redisMock.ExpectGetDel("card_qr:scan-1").SetVal("4821937560")
	sqlMock.ExpectQuery(`SELECT .+ FROM customers WHERE id = \$1`).
		WithArgs("4821937560").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "email", "phone", "dog_name",
			"balance", "total_transactions", "level", "training_progress", "created_at", "updated_at"}).
			AddRow("4821937560", "Lena", "Vogel", "", "", "Fido", "50.00", 1, "Einsteiger", progress, now, now))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cards/resolve", strings.NewReader(`{"token":"scan-1"}`)))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var customer models.Customer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customer))
	assert.Equal(t, "4821937560", customer.ID)
	assert.Equal(t, "Fido", customer.DogName)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestQRHandler_ResolveCardRejected(t *testing.T) {
	t.Run("expired token", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()
		r, _ := qrRouter(t, rdb)

		redisMock.ExpectGetDel("card_qr:old").RedisNil()

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cards/resolve", strings.NewReader(`{"token":"old"}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp services.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, services.ErrQRInvalid.Error(), resp.Error)
	})

	t.Run("missing token", func(t *testing.T) {
		rdb, _ := redismock.NewClientMock()
		r, _ := qrRouter(t, rdb)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cards/resolve", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp services.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Details, "Token")
	})
}

func TestQRHandler_GetCardQR(t *testing.T) {
	t.Run("unknown customer", func(t *testing.T) {
		rdb, _ := redismock.NewClientMock()
		r, sqlMock := qrRouter(t, rdb)

		sqlMock.ExpectQuery(`SELECT .+ FROM customers WHERE id = \$1`).
			WithArgs("0000000000").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/customers/0000000000/card/qr", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("redis not configured", func(t *testing.T) {
		r, _ := qrRouter(t, nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/customers/4821937560/card/qr", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
