package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "first_name", "last_name", "role", "customer_id", "last_login", "created_at", "updated_at"}

func TestPasswordHashing(t *testing.T) {
	setTestAuthConfig(t)

	hashed, err := hashPassword("password123")
	require.NoError(t, err)

	assert.True(t, verifyPassword("password123", hashed))
	assert.False(t, verifyPassword("password124", hashed))
	assert.False(t, verifyPassword("password123", "not-a-hash"))
	assert.False(t, verifyPassword("password123", "%%%$%%%"))

	other, err := hashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, other, "salt must differ per hash")
}

func TestAuthService_Login(t *testing.T) {
	setTestAuthConfig(t)
	hashed, err := hashPassword("password123")
	require.NoError(t, err)

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewAuthService(db, nil, ledger.FixedClock(testNow))

	loginQuery := `SELECT .+, password FROM users WHERE email = \$1`

	t.Run("success", func(t *testing.T) {
		sqlMock.ExpectQuery(loginQuery).
			WithArgs("kunde@example.com").
			WillReturnRows(sqlmock.NewRows(append(userCols, "password")).
				AddRow(9, "kunde@example.com", "Lena", "Vogel", "customer", testCustomerID, nil, testNow, testNow, hashed))
		sqlMock.ExpectExec(`UPDATE users SET last_login = \$1 WHERE id = \$2`).
			WithArgs(testNow, 9).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		s.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"Kunde@Example.com","password":"password123"}`)))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp AuthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.RoleCustomer, resp.User.Role)
		require.NotNil(t, resp.User.CustomerID)
		assert.Equal(t, testCustomerID, *resp.User.CustomerID)
		require.NotNil(t, resp.User.LastLogin)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		}, jwt.WithTimeFunc(func() time.Time { return testNow }))
		require.NoError(t, err)
		assert.Equal(t, float64(9), claims["user_id"])
		assert.Equal(t, "customer", claims["role"])
		assert.Equal(t, testCustomerID, claims["customer_id"])
		assert.Equal(t, "kunde@example.com", claims["email"])
	})

	t.Run("wrong password", func(t *testing.T) {
		sqlMock.ExpectQuery(loginQuery).
			WithArgs("kunde@example.com").
			WillReturnRows(sqlmock.NewRows(append(userCols, "password")).
				AddRow(9, "kunde@example.com", "Lena", "Vogel", "customer", testCustomerID, nil, testNow, testNow, hashed))

		w := httptest.NewRecorder()
		s.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"kunde@example.com","password":"guess"}`)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		sqlMock.ExpectQuery(loginQuery).
			WithArgs("niemand@example.com").
			WillReturnRows(sqlmock.NewRows(append(userCols, "password")))

		w := httptest.NewRecorder()
		s.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"niemand@example.com","password":"password123"}`)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email":"kein-email","password":""}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAuthService_Logout(t *testing.T) {
	setTestAuthConfig(t)

	rdb, redisMock := redismock.NewClientMock()
	s := NewAuthService(nil, rdb, ledger.FixedClock(testNow))

	redisMock.ExpectSet("blacklist:abc.def.ghi", "1", time.Hour).SetVal("OK")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	w := httptest.NewRecorder()
	s.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestAuthService_Me(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewAuthService(db, nil, ledger.FixedClock(testNow))

	r := chi.NewRouter()
	r.Use(withActor(staffActor))
	r.Get("/auth/me", s.Me)

	sqlMock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(2, staffActor.Email, "Anna", "Berger", "staff", nil, testNow, testNow, testNow))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, 2, user.ID)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.Nil(t, user.CustomerID)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
