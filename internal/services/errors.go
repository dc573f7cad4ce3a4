package services

import "errors"

var (
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrQRUnavailable       = errors.New("card QR codes require redis")
	ErrQRInvalid           = errors.New("invalid or expired QR code")
)
