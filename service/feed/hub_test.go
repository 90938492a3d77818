package feed

import (
	"context"
	"testing"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub(t *testing.T) {
	h := New()
	ctx := context.Background()

	var a, b []core.SessionStatus
	unsubA, err := h.Subscribe(ctx, "s1", func(s *core.PaymentSession) { a = append(a, s.Status) })
	require.NoError(t, err)
	_, err = h.Subscribe(ctx, "s2", func(s *core.PaymentSession) { b = append(b, s.Status) })
	require.NoError(t, err)

	h.Publish(&core.PaymentSession{SessionID: "s1", Status: core.SessionStatusPaid})
	h.Publish(&core.PaymentSession{SessionID: "s3", Status: core.SessionStatusExpired})

	assert.Equal(t, []core.SessionStatus{core.SessionStatusPaid}, a)
	assert.Empty(t, b)

	unsubA()
	unsubA()
	h.Publish(&core.PaymentSession{SessionID: "s1", Status: core.SessionStatusExpired})
	assert.Len(t, a, 1)
	assert.Equal(t, 1, h.Len())
}

func TestHubUnsubscribeOnContextDone(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := h.Subscribe(ctx, "s1", func(*core.PaymentSession) {})
	require.NoError(t, err)
	require.Equal(t, 1, h.Len())

	cancel()
	assert.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
}
