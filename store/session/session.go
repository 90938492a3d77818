package session

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pandodao/beanpay/core"
	"github.com/tsenart/nap"
)

func New(db *nap.DB) core.SessionStore {
	return &store{db: db}
}

type store struct {
	db *nap.DB
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (s *store) Create(ctx context.Context, session *core.PaymentSession) error {
	var productID sql.NullInt64
	if session.ProductID != nil {
		productID = sql.NullInt64{Int64: int64(*session.ProductID), Valid: true}
	}

	b := psql.Insert("payment_sessions").
		Columns("session_id", "seller_wallet_address", "product_id", "product_name", "amount", "status", "created_at", "expires_at").
		Values(session.SessionID, session.SellerWalletAddress, productID, nullString(session.ProductName), session.Amount, session.Status, session.CreatedAt, session.ExpiresAt)

	stmt, args := b.MustSql()
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *store) Find(ctx context.Context, sessionID string) (*core.PaymentSession, error) {
	b := psql.Select(scanColumns...).
		From("payment_sessions").
		Where(sq.Eq{"session_id": sessionID})

	stmt, args := b.MustSql()
	row := s.db.QueryRowContext(ctx, stmt, args...)

	var session core.PaymentSession
	if err := scanSession(row, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *store) MarkPaid(ctx context.Context, sessionID string, settlement *core.Settlement, now time.Time) error {
	var notifiedAt sql.NullTime
	if settlement.NotifiedAt != nil {
		notifiedAt = sql.NullTime{Time: *settlement.NotifiedAt, Valid: true}
	}

	b := psql.Update("payment_sessions").
		Set("status", core.SessionStatusPaid).
		Set("payment_tx_hash", settlement.TxHash).
		Set("buyer_address", settlement.BuyerAddress).
		Set("payment_method", settlement.Method).
		Set("notified_at", notifiedAt).
		Where(sq.Eq{"session_id": sessionID}).
		Where(sq.Eq{"status": core.SessionStatusPending}).
		Where(sq.Gt{"expires_at": now})

	return s.transit(ctx, sessionID, b)
}

func (s *store) MarkExpired(ctx context.Context, sessionID string, now time.Time) error {
	b := psql.Update("payment_sessions").
		Set("status", core.SessionStatusExpired).
		Where(sq.Eq{"session_id": sessionID}).
		Where(sq.Eq{"status": core.SessionStatusPending}).
		Where(sq.LtOrEq{"expires_at": now})

	return s.transit(ctx, sessionID, b)
}

func (s *store) transit(ctx context.Context, sessionID string, b sq.UpdateBuilder) error {
	stmt, args := b.MustSql()
	r, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return err
	}

	n, err := r.RowsAffected()
	if err != nil {
		return err
	}

	if n > 0 {
		return nil
	}

	if _, err := s.Find(ctx, sessionID); err != nil {
		return err
	}

	return core.ErrSessionNotPending
}

func (s *store) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*core.PaymentSession, error) {
	b := psql.Select(scanColumns...).
		From("payment_sessions").
		Where(sq.Eq{"status": core.SessionStatusPending}).
		Where(sq.LtOrEq{"expires_at": now}).
		OrderBy("expires_at").
		Limit(uint64(limit))

	return s.list(ctx, b)
}

func (s *store) ListSeller(ctx context.Context, seller string, limit int) ([]*core.PaymentSession, error) {
	b := psql.Select(scanColumns...).
		From("payment_sessions").
		Where(sq.Eq{"seller_wallet_address": seller}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	return s.list(ctx, b)
}

func (s *store) list(ctx context.Context, b sq.SelectBuilder) ([]*core.PaymentSession, error) {
	stmt, args := b.MustSql()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*core.PaymentSession
	for rows.Next() {
		var session core.PaymentSession
		if err := scanSession(rows, &session); err != nil {
			return nil, err
		}

		sessions = append(sessions, &session)
	}

	return sessions, rows.Err()
}
