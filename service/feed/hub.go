package feed

import (
	"context"
	"sync"

	"github.com/pandodao/beanpay/core"
)

type subscriber struct {
	fn func(session *core.PaymentSession)
}

// Hub fans session changes out to in-process subscribers keyed by session id.
// Callbacks run on the publishing goroutine and must not block.
type Hub struct {
	mux  sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func New() *Hub {
	return &Hub{subs: map[string]map[*subscriber]struct{}{}}
}

func (h *Hub) Publish(session *core.PaymentSession) {
	h.mux.RLock()
	subs := make([]*subscriber, 0, len(h.subs[session.SessionID]))
	for sub := range h.subs[session.SessionID] {
		subs = append(subs, sub)
	}
	h.mux.RUnlock()

	for _, sub := range subs {
		c := *session
		sub.fn(&c)
	}
}

func (h *Hub) Subscribe(ctx context.Context, sessionID string, fn func(session *core.PaymentSession)) (func(), error) {
	sub := &subscriber{fn: fn}

	h.mux.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = map[*subscriber]struct{}{}
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mux.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mux.Lock()
			defer h.mux.Unlock()

			delete(h.subs[sessionID], sub)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return unsubscribe, nil
}

// Len returns the number of sessions with at least one subscriber.
func (h *Hub) Len() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.subs)
}
