package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pandodao/beanpay/core"
)

type State string

const (
	StateIdle      State = "idle"
	StateObserving State = "observing"
	StateTerminal  State = "terminal"
	StateCancelled State = "cancelled"
)

var (
	ErrCancelled       = errors.New("watcher cancelled")
	ErrAlreadyObserved = errors.New("watcher already used")
)

// Syncer returns the authoritative session, expiring it when overdue.
type Syncer interface {
	Sync(ctx context.Context, sessionID string) (*core.PaymentSession, error)
}

type Config struct {
	Interval time.Duration
}

// Watcher observes one session through the push feed and a poll loop until
// the first terminal status. A Watcher is single use.
type Watcher struct {
	feed     core.SessionFeed
	sessions Syncer
	logger   *slog.Logger
	interval time.Duration

	mux         sync.Mutex
	sessionID   string
	state       State
	outcome     Outcome
	cancel      context.CancelFunc
	unsubscribe func()

	stopOnce sync.Once
	done     chan struct{}
}

func New(feed core.SessionFeed, sessions Syncer, logger *slog.Logger, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	return &Watcher{
		feed:     feed,
		sessions: sessions,
		logger:   logger.With("service", "watcher"),
		interval: cfg.Interval,
		state:    StateIdle,
		outcome:  Outcome{Status: core.SessionStatusPending},
		done:     make(chan struct{}),
	}
}

// Observe opens both channels. It returns once they are started; use Done or
// Wait for the outcome.
func (w *Watcher) Observe(ctx context.Context, sessionID string) error {
	w.mux.Lock()
	if w.state != StateIdle {
		w.mux.Unlock()
		return ErrAlreadyObserved
	}

	ctx, cancel := context.WithCancel(ctx)
	w.sessionID = sessionID
	w.state = StateObserving
	w.cancel = cancel
	w.logger = w.logger.With("session", sessionID)
	w.mux.Unlock()

	unsubscribe, err := w.feed.Subscribe(ctx, sessionID, func(session *core.PaymentSession) {
		if session.SessionID == sessionID {
			w.handle(Event{Source: SourcePush, Status: session.Status})
		}
	})
	if err != nil {
		// the poll channel alone still reaches a terminal status
		w.logger.Warn("feed.Subscribe", "err", err)
	} else {
		w.mux.Lock()
		w.unsubscribe = unsubscribe
		terminal := w.state != StateObserving
		w.mux.Unlock()

		if terminal {
			unsubscribe()
		}
	}

	go w.poll(ctx, sessionID)
	go func() {
		select {
		case <-ctx.Done():
			w.Cancel()
		case <-w.done:
		}
	}()

	return nil
}

func (w *Watcher) poll(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		session, err := w.sessions.Sync(ctx, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("sessions.Sync", "err", err)
		} else {
			w.handle(Event{Source: SourcePoll, Status: session.Status})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) handle(ev Event) {
	w.mux.Lock()
	next, conflict := Reduce(w.outcome, ev)
	if conflict {
		w.logger.Warn("inconsistent terminal status ignored",
			"kept", w.outcome.Status, "kept_source", w.outcome.Source,
			"ignored", ev.Status, "ignored_source", ev.Source)
	}

	reached := w.state == StateObserving && next.Terminal()
	if reached {
		w.outcome = next
		w.state = StateTerminal
	}
	w.mux.Unlock()

	if reached {
		w.logger.Info("session settled", "status", next.Status, "source", next.Source)
		w.stop()
	}
}

// stop cancels both channels exactly once.
func (w *Watcher) stop() {
	w.stopOnce.Do(func() {
		w.mux.Lock()
		cancel, unsubscribe := w.cancel, w.unsubscribe
		w.mux.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}

		if cancel != nil {
			cancel()
		}

		close(w.done)
	})
}

// Cancel stops observing. It is safe to call from any state, any number of times.
func (w *Watcher) Cancel() {
	w.mux.Lock()
	if w.state == StateIdle || w.state == StateObserving {
		w.state = StateCancelled
	}
	w.mux.Unlock()

	w.stop()
}

func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) State() State {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.state
}

func (w *Watcher) Outcome() Outcome {
	w.mux.Lock()
	defer w.mux.Unlock()
	return w.outcome
}

// Wait blocks until the session is terminal or the watcher is cancelled.
func (w *Watcher) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return w.Outcome(), ctx.Err()
	case <-w.done:
	}

	w.mux.Lock()
	defer w.mux.Unlock()

	if w.state != StateTerminal {
		return w.outcome, ErrCancelled
	}

	return w.outcome, nil
}
