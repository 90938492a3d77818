package session

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pandodao/beanpay/core"
)

// Memory is a SessionStore kept in process memory, used by tests and the
// standalone cli server.
type Memory struct {
	mux      sync.Mutex
	sessions map[string]*core.PaymentSession
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string]*core.PaymentSession{}}
}

func clone(session *core.PaymentSession) *core.PaymentSession {
	c := *session
	if session.ProductID != nil {
		id := *session.ProductID
		c.ProductID = &id
	}

	if session.NotifiedAt != nil {
		t := *session.NotifiedAt
		c.NotifiedAt = &t
	}

	return &c
}

func (m *Memory) Create(_ context.Context, session *core.PaymentSession) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	if _, ok := m.sessions[session.SessionID]; ok {
		return fmt.Errorf("session %s already exists", session.SessionID)
	}

	m.sessions[session.SessionID] = clone(session)
	return nil
}

func (m *Memory) Find(_ context.Context, sessionID string) (*core.PaymentSession, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	return clone(session), nil
}

func (m *Memory) MarkPaid(_ context.Context, sessionID string, settlement *core.Settlement, now time.Time) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return sql.ErrNoRows
	}

	if session.Status != core.SessionStatusPending || session.Overdue(now) {
		return core.ErrSessionNotPending
	}

	session.Status = core.SessionStatusPaid
	session.PaymentTxHash = settlement.TxHash
	session.BuyerAddress = settlement.BuyerAddress
	session.PaymentMethod = settlement.Method
	if settlement.NotifiedAt != nil {
		t := *settlement.NotifiedAt
		session.NotifiedAt = &t
	}

	return nil
}

func (m *Memory) MarkExpired(_ context.Context, sessionID string, now time.Time) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return sql.ErrNoRows
	}

	if session.Status != core.SessionStatusPending || !session.Overdue(now) {
		return core.ErrSessionNotPending
	}

	session.Status = core.SessionStatusExpired
	return nil
}

func (m *Memory) ListOverdue(_ context.Context, now time.Time, limit int) ([]*core.PaymentSession, error) {
	return m.list(limit, func(s *core.PaymentSession) bool {
		return s.Status == core.SessionStatusPending && s.Overdue(now)
	}, func(a, b *core.PaymentSession) bool {
		return a.ExpiresAt.Before(b.ExpiresAt)
	})
}

func (m *Memory) ListSeller(_ context.Context, seller string, limit int) ([]*core.PaymentSession, error) {
	return m.list(limit, func(s *core.PaymentSession) bool {
		return s.SellerWalletAddress == seller
	}, func(a, b *core.PaymentSession) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func (m *Memory) list(limit int, match func(*core.PaymentSession) bool, less func(a, b *core.PaymentSession) bool) ([]*core.PaymentSession, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	var sessions []*core.PaymentSession
	for _, s := range m.sessions {
		if match(s) {
			sessions = append(sessions, clone(s))
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return less(sessions[i], sessions[j])
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}

	return sessions, nil
}
