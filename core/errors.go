package core

import "errors"

var (
	ErrInvalidSecret       = errors.New("invalid secret")
	ErrNetwork             = errors.New("network error")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	ErrSessionNotPending = errors.New("session not pending")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionNotExpired = errors.New("session not expired yet")
	ErrInvalidQRFormat   = errors.New("invalid qr format")

	ErrWebhookDelivery   = errors.New("webhook delivery failed")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidArgument   = errors.New("invalid argument")
)
