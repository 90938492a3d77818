package core

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentNotification struct {
	SessionID     string           `json:"sessionId"`
	TxHash        string           `json:"txHash"`
	BuyerAddress  string           `json:"buyerAddress"`
	PaymentMethod PaymentMethod    `json:"paymentMethod"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
}

type PaymentNotifier interface {
	Notify(ctx context.Context, notification *PaymentNotification) error
}
