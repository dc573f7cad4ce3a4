package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customerByID = `SELECT .+ FROM customers WHERE id = \$1`

func newTestQRService(t *testing.T) (*CardQRService, sqlmock.Sqlmock, redismock.ClientMock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rdb, redisMock := redismock.NewClientMock()
	s := NewCardQRService(db, rdb, ledger.FixedClock(testNow), 10*time.Minute)
	s.newToken = func() (string, error) { return "tok-123", nil }
	return s, sqlMock, redisMock
}

func TestCardQRService_Generate(t *testing.T) {
	s, sqlMock, redisMock := newTestQRService(t)

	sqlMock.ExpectQuery(customerByID).WithArgs(testCustomerID).
		WillReturnRows(customerRow(t, testCustomerID, "32.00", 4, 4))
	redisMock.ExpectSet("card_qr:tok-123", testCustomerID, 10*time.Minute).SetVal("OK")

	qr, err := s.Generate(context.Background(), testCustomerID)
	require.NoError(t, err)

	assert.Equal(t, testCustomerID, qr.CustomerID)
	assert.Equal(t, "tok-123", qr.Token)
	assert.Equal(t, testNow.Add(10*time.Minute), qr.ExpiresAt)

	raw, err := base64.StdEncoding.DecodeString(qr.Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	assert.NoError(t, sqlMock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCardQRService_GenerateUnknownCustomer(t *testing.T) {
	s, sqlMock, redisMock := newTestQRService(t)

	sqlMock.ExpectQuery(customerByID).WithArgs("0000000000").
		WillReturnRows(sqlmock.NewRows(customerCols))

	_, err := s.Generate(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCardQRService_GenerateStoreFailure(t *testing.T) {
	s, sqlMock, redisMock := newTestQRService(t)

	sqlMock.ExpectQuery(customerByID).WithArgs(testCustomerID).
		WillReturnRows(customerRow(t, testCustomerID, "32.00", 4, 4))
	redisMock.ExpectSet("card_qr:tok-123", testCustomerID, 10*time.Minute).SetErr(errors.New("connection refused"))

	_, err := s.Generate(context.Background(), testCustomerID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store QR token")
}

func TestCardQRService_Resolve(t *testing.T) {
	t.Run("consumes token", func(t *testing.T) {
		s, sqlMock, redisMock := newTestQRService(t)

		redisMock.ExpectGetDel("card_qr:tok-123").SetVal(testCustomerID)
		sqlMock.ExpectQuery(customerByID).WithArgs(testCustomerID).
			WillReturnRows(customerRow(t, testCustomerID, "32.00", 4, 4))

		customer, err := s.Resolve(context.Background(), "tok-123")
		require.NoError(t, err)
		assert.Equal(t, testCustomerID, customer.ID)
		assert.Equal(t, "32", customer.Balance.String())

		assert.NoError(t, sqlMock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("second scan rejected", func(t *testing.T) {
		s, sqlMock, redisMock := newTestQRService(t)

		redisMock.ExpectGetDel("card_qr:tok-123").SetVal(testCustomerID)
		sqlMock.ExpectQuery(customerByID).WithArgs(testCustomerID).
			WillReturnRows(customerRow(t, testCustomerID, "32.00", 4, 4))
		redisMock.ExpectGetDel("card_qr:tok-123").RedisNil()

		_, err := s.Resolve(context.Background(), "tok-123")
		require.NoError(t, err)
		_, err = s.Resolve(context.Background(), "tok-123")
		assert.ErrorIs(t, err, ErrQRInvalid)

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("redis failure", func(t *testing.T) {
		s, _, redisMock := newTestQRService(t)

		redisMock.ExpectGetDel("card_qr:tok-123").SetErr(errors.New("connection refused"))

		_, err := s.Resolve(context.Background(), "tok-123")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrQRInvalid)
	})

	t.Run("expired or used", func(t *testing.T) {
		s, _, redisMock := newTestQRService(t)

		redisMock.ExpectGetDel("card_qr:gone").RedisNil()

		_, err := s.Resolve(context.Background(), "gone")
		assert.ErrorIs(t, err, ErrQRInvalid)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestCardQRService_WithoutRedis(t *testing.T) {
	s := NewCardQRService(nil, nil, ledger.FixedClock(testNow), time.Minute)

	_, err := s.Generate(context.Background(), testCustomerID)
	assert.ErrorIs(t, err, ErrQRUnavailable)

	_, err = s.Resolve(context.Background(), "tok-123")
	assert.ErrorIs(t, err, ErrQRUnavailable)
}

func TestGenerateNonce(t *testing.T) {
	a, err := generateNonce()
	require.NoError(t, err)
	b, err := generateNonce()
	require.NoError(t, err)

	assert.Len(t, a, 22)
	assert.NotEqual(t, a, b)
}
