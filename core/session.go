package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	SessionStatusPending SessionStatus = "pending"
	SessionStatusPaid    SessionStatus = "paid"
	SessionStatusExpired SessionStatus = "expired"
)

// SessionTTL is fixed at creation and never extended.
const SessionTTL = 15 * time.Minute

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusPaid || s == SessionStatusExpired
}

type PaymentSession struct {
	SessionID           string          `json:"session_id"`
	SellerWalletAddress string          `json:"seller_wallet_address"`
	ProductID           *uint64         `json:"product_id,omitempty"`
	ProductName         string          `json:"product_name,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Status              SessionStatus   `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
	PaymentTxHash       string          `json:"payment_tx_hash,omitempty"`
	BuyerAddress        string          `json:"buyer_address,omitempty"`
	PaymentMethod       PaymentMethod   `json:"payment_method,omitempty"`
	NotifiedAt          *time.Time      `json:"notified_at,omitempty"`
}

// Overdue reports whether the session can no longer be paid at now.
func (s *PaymentSession) Overdue(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Settlement struct {
	TxHash       string
	BuyerAddress string
	Method       PaymentMethod
	Amount       decimal.Decimal
	NotifiedAt   *time.Time
}

// SessionStore transitions are compare-and-set. A transition that finds the row
// in any other state returns ErrSessionNotPending; a missing row is sql.ErrNoRows.
type SessionStore interface {
	Create(ctx context.Context, session *PaymentSession) error
	Find(ctx context.Context, sessionID string) (*PaymentSession, error)
	// MarkPaid moves a pending, unexpired session to paid. Any other state is rejected.
	MarkPaid(ctx context.Context, sessionID string, settlement *Settlement, now time.Time) error
	// MarkExpired moves a pending, overdue session to expired. Any other state is rejected.
	MarkExpired(ctx context.Context, sessionID string, now time.Time) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*PaymentSession, error)
	ListSeller(ctx context.Context, seller string, limit int) ([]*PaymentSession, error)
}

type SessionPublisher interface {
	Publish(session *PaymentSession)
}

// SessionFeed pushes row changes of a single session.
type SessionFeed interface {
	Subscribe(ctx context.Context, sessionID string, fn func(session *PaymentSession)) (unsubscribe func(), err error)
}

type SessionInput struct {
	SellerWalletAddress string          `json:"seller_wallet_address"`
	ProductID           *uint64         `json:"product_id,omitempty"`
	ProductName         string          `json:"product_name,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
}

// SessionService owns the payment session lifecycle. The server clock is
// authoritative for expiry.
type SessionService interface {
	Create(ctx context.Context, input *SessionInput) (*PaymentSession, error)
	Find(ctx context.Context, sessionID string) (*PaymentSession, error)
	// Sync returns the stored session, expiring it first when it is overdue.
	Sync(ctx context.Context, sessionID string) (*PaymentSession, error)
	MarkPaid(ctx context.Context, sessionID string, settlement *Settlement) (*PaymentSession, error)
	MarkExpired(ctx context.Context, sessionID string) (*PaymentSession, error)
	ListSeller(ctx context.Context, seller string, limit int) ([]*PaymentSession, error)
}
