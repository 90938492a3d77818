package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
)

type service struct {
	sessions  core.SessionStore
	publisher core.SessionPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func New(sessions core.SessionStore, publisher core.SessionPublisher, logger *slog.Logger) core.SessionService {
	return &service{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger.With("service", "session"),
		now:       time.Now,
	}
}

// newSessionID returns session_<unix-ms>_<12 hex chars>.
func newSessionID(now time.Time) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), hex.EncodeToString(b)), nil
}

func (s *service) Create(ctx context.Context, input *core.SessionInput) (*core.PaymentSession, error) {
	if !common.IsHexAddress(input.SellerWalletAddress) {
		return nil, fmt.Errorf("%w: seller address %q", core.ErrInvalidArgument, input.SellerWalletAddress)
	}

	if !input.Amount.IsPositive() || !input.Amount.IsInteger() {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidAmount, input.Amount)
	}

	now := s.now()
	id, err := newSessionID(now)
	if err != nil {
		return nil, err
	}

	session := &core.PaymentSession{
		SessionID:           id,
		SellerWalletAddress: common.HexToAddress(input.SellerWalletAddress).Hex(),
		ProductID:           input.ProductID,
		ProductName:         input.ProductName,
		Amount:              input.Amount,
		Status:              core.SessionStatusPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(core.SessionTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.Error("sessions.Create", "err", err)
		return nil, err
	}

	s.logger.Info("session created", "session", id, "seller", session.SellerWalletAddress, "amount", session.Amount)
	s.publisher.Publish(session)
	return session, nil
}

func (s *service) Find(ctx context.Context, sessionID string) (*core.PaymentSession, error) {
	return s.sessions.Find(ctx, sessionID)
}

func (s *service) Sync(ctx context.Context, sessionID string) (*core.PaymentSession, error) {
	session, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Status != core.SessionStatusPending || !session.Overdue(s.now()) {
		return session, nil
	}

	expired, err := s.MarkExpired(ctx, sessionID)
	if errors.Is(err, core.ErrSessionNotPending) {
		// paid in the meantime
		return s.sessions.Find(ctx, sessionID)
	}

	return expired, err
}

func (s *service) MarkPaid(ctx context.Context, sessionID string, settlement *core.Settlement) (*core.PaymentSession, error) {
	if settlement.TxHash == "" {
		return nil, fmt.Errorf("%w: tx hash is required", core.ErrInvalidArgument)
	}

	if !settlement.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedMethod, settlement.Method)
	}

	now := s.now()
	if err := s.sessions.MarkPaid(ctx, sessionID, settlement, now); err != nil {
		if !errors.Is(err, core.ErrSessionNotPending) {
			return nil, err
		}

		current, findErr := s.sessions.Find(ctx, sessionID)
		if findErr != nil {
			return nil, findErr
		}

		if current.Status == core.SessionStatusExpired ||
			(current.Status == core.SessionStatusPending && current.Overdue(now)) {
			return current, core.ErrSessionExpired
		}

		return current, core.ErrSessionNotPending
	}

	session, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !settlement.Amount.IsZero() && !settlement.Amount.Equal(session.Amount) {
		s.logger.Warn("settlement amount differs from session amount",
			"session", sessionID, "session_amount", session.Amount, "settled_amount", settlement.Amount)
	}

	s.logger.Info("session paid", "session", sessionID, "tx", settlement.TxHash, "method", settlement.Method)
	s.publisher.Publish(session)
	return session, nil
}

func (s *service) MarkExpired(ctx context.Context, sessionID string) (*core.PaymentSession, error) {
	now := s.now()
	if err := s.sessions.MarkExpired(ctx, sessionID, now); err != nil {
		if !errors.Is(err, core.ErrSessionNotPending) {
			return nil, err
		}

		current, findErr := s.sessions.Find(ctx, sessionID)
		if findErr != nil {
			return nil, findErr
		}

		if current.Status == core.SessionStatusPending {
			return current, core.ErrSessionNotExpired
		}

		return current, core.ErrSessionNotPending
	}

	session, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session expired", "session", sessionID)
	s.publisher.Publish(session)
	return session, nil
}

func (s *service) ListSeller(ctx context.Context, seller string, limit int) ([]*core.PaymentSession, error) {
	if common.IsHexAddress(seller) {
		seller = common.HexToAddress(seller).Hex()
	}

	return s.sessions.ListSeller(ctx, seller, limit)
}
