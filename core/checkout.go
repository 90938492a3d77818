package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type CheckoutRequest struct {
	// Payload is the scanned QR text.
	Payload string        `json:"payload"`
	Method  PaymentMethod `json:"method"`
	Index   uint32        `json:"index"`
	// NativeValue is the quoted AVAX amount in wei, required for AVAX payments.
	NativeValue decimal.Decimal `json:"native_value"`
}

type CheckoutReceipt struct {
	SessionID     string         `json:"session_id"`
	Method        PaymentMethod  `json:"method"`
	BuyerAddress  common.Address `json:"buyer_address"`
	ApproveTxHash *common.Hash   `json:"approve_tx_hash,omitempty"`
	PaymentTxHash common.Hash    `json:"payment_tx_hash"`
	Confirmation  *Confirmation  `json:"confirmation"`
	Notified      bool           `json:"notified"`
	NotifyError   string         `json:"notify_error,omitempty"`
	NotifyErr     error          `json:"-"`
}

// CheckoutService pays a scanned session from the user's custodial wallet.
type CheckoutService interface {
	Pay(ctx context.Context, userID string, req *CheckoutRequest) (*CheckoutReceipt, error)
}
