package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/mantrailing/cardservice/internal/ledger"
	"github.com/mantrailing/cardservice/internal/models"
	"github.com/skip2/go-qrcode"
)

const cardQRPrefix = "card_qr:"

// CardQR is a scannable, short-lived reference to a customer card
type CardQR struct {
	CustomerID string    `json:"customerId"`
	Token      string    `json:"token"`
	Image      string    `json:"qrImage"` // base64 PNG
	ExpiresAt  time.Time `json:"expiresAt"`
}

// CardQRService issues single-use QR tokens for customer cards
type CardQRService struct {
	db       *sql.DB
	redis    *redis.Client
	clock    ledger.Clock
	ttl      time.Duration
	newToken func() (string, error)
}

func NewCardQRService(db *sql.DB, redisClient *redis.Client, clock ledger.Clock, ttl time.Duration) *CardQRService {
	return &CardQRService{
		db:       db,
		redis:    redisClient,
		clock:    clock,
		ttl:      ttl,
		newToken: generateNonce,
	}
}

// Generate stores a fresh token for the customer and renders it as PNG
func (s *CardQRService) Generate(ctx context.Context, customerID string) (*CardQR, error) {
	if s.redis == nil {
		return nil, ErrQRUnavailable
	}
	if _, err := getCustomer(ctx, s.db, customerID, false); err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	if err := s.redis.Set(ctx, cardQRPrefix+token, customerID, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store QR token: %w", err)
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}

	return &CardQR{
		CustomerID: customerID,
		Token:      token,
		Image:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		ExpiresAt:  s.clock.Now().Add(s.ttl),
	}, nil
}

// Resolve consumes a scanned token and returns the card holder
func (s *CardQRService) Resolve(ctx context.Context, token string) (models.Customer, error) {
	if s.redis == nil {
		return models.Customer{}, ErrQRUnavailable
	}

	customerID, err := s.redis.GetDel(ctx, cardQRPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return models.Customer{}, ErrQRInvalid
	}
	if err != nil {
		return models.Customer{}, fmt.Errorf("consume QR token: %w", err)
	}

	return getCustomer(ctx, s.db, customerID, false)
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
