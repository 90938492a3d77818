package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// QRPayload is what the seller's QR code carries. Times are unix milliseconds.
type QRPayload struct {
	SessionID     string  `json:"sessionId"`
	WalletAddress string  `json:"walletAddress"`
	ProductID     *uint64 `json:"productId,omitempty"`
	Amount        string  `json:"amount"`
	Timestamp     int64   `json:"timestamp"`
	ExpiresAt     int64   `json:"expiresAt"`
	ProductName   string  `json:"productName,omitempty"`
}

var qrRequiredFields = []string{"sessionId", "walletAddress", "amount", "timestamp", "expiresAt"}

func NewQRPayload(session *PaymentSession) *QRPayload {
	return &QRPayload{
		SessionID:     session.SessionID,
		WalletAddress: session.SellerWalletAddress,
		ProductID:     session.ProductID,
		Amount:        session.Amount.String(),
		Timestamp:     session.CreatedAt.UnixMilli(),
		ExpiresAt:     session.ExpiresAt.UnixMilli(),
		ProductName:   session.ProductName,
	}
}

func (p *QRPayload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// ParseQRPayload never fails loudly: anything that is not a complete payload yields ok == false.
func ParseQRPayload(data []byte) (*QRPayload, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}

	for _, name := range qrRequiredFields {
		if v, ok := fields[name]; !ok || string(v) == "null" {
			return nil, false
		}
	}

	var p QRPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}

	if p.SessionID == "" || p.WalletAddress == "" {
		return nil, false
	}

	if _, err := p.AmountValue(); err != nil {
		return nil, false
	}

	return &p, true
}

func (p *QRPayload) AmountValue() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return decimal.Zero, err
	}

	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, ErrInvalidAmount
	}

	return amount, nil
}

// Remaining is a countdown for display only; the session store decides expiry.
func (p *QRPayload) Remaining(now time.Time) time.Duration {
	return max(time.UnixMilli(p.ExpiresAt).Sub(now), 0)
}
