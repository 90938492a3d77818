package expirer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandodao/beanpay/core"
	"golang.org/x/sync/errgroup"
)

func New(
	sessions core.SessionStore,
	sessionz core.SessionService,
	logger *slog.Logger,
) *Expirer {
	return &Expirer{
		sessions: sessions,
		sessionz: sessionz,
		logger:   logger.With("worker", "expirer"),
	}
}

// Expirer moves overdue pending sessions to expired.
type Expirer struct {
	sessions core.SessionStore
	sessionz core.SessionService
	logger   *slog.Logger
}

func (w *Expirer) Run(ctx context.Context) error {
	w.logger.Info("expirer start")

	for {
		dur := time.Second
		if w.run(ctx) == nil {
			dur = 500 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (w *Expirer) run(ctx context.Context) error {
	const limit = 64
	sessions, err := w.sessions.ListOverdue(ctx, time.Now(), limit)
	if err != nil {
		w.logger.Error("sessions.ListOverdue", "err", err)
		return err
	}

	if len(sessions) == 0 {
		return fmt.Errorf("overdue sessions dry")
	}

	var g errgroup.Group
	g.SetLimit(10)

	for idx := range sessions {
		session := sessions[idx]
		g.Go(func() error {
			return w.expire(ctx, session)
		})
	}

	return g.Wait()
}

func (w *Expirer) expire(ctx context.Context, session *core.PaymentSession) error {
	logger := w.logger.With("session", session.SessionID)

	_, err := w.sessionz.MarkExpired(ctx, session.SessionID)
	switch {
	case err == nil:
		logger.Info("session expired", "expires_at", session.ExpiresAt)
		return nil
	case errors.Is(err, core.ErrSessionNotPending), errors.Is(err, core.ErrSessionNotExpired):
		// lost the race to a payment
		logger.Debug("session already settled", "err", err)
		return nil
	default:
		logger.Error("sessions.MarkExpired", "err", err)
		return err
	}
}
