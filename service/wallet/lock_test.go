package wallet

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerSerializesAddress(t *testing.T) {
	l := NewLocker()
	addr := common.HexToAddress("0x01")

	var (
		wg      sync.WaitGroup
		holders atomic.Int32
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(addr)
			defer unlock()

			if holders.Add(1) > 1 {
				t.Error("two holders of one address lock")
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
		}()
	}

	wg.Wait()
	assert.Zero(t, l.size())
}

func TestLockerIndependentAddresses(t *testing.T) {
	l := NewLocker()

	unlockA := l.Lock(common.HexToAddress("0x01"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Lock(common.HexToAddress("0x02"))()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another address blocked")
	}

	assert.Equal(t, 1, l.size())
	unlockA()
	assert.Zero(t, l.size())
}

// A rebuilt service for the same secret must not reuse in-flight nonces.
func TestSharedLockerAcrossServices(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1e18)}
	locks := NewLocker()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	services := make([]core.WalletService, 2)
	for i := range services {
		ring, err := keyring.New(testMnemonic)
		require.NoError(t, err)
		services[i] = New(chain, &fakeReader{}, ring, logger, Config{Locks: locks})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(s core.WalletService) {
			defer wg.Done()
			_, err := s.SendNative(context.Background(), &core.NativeTx{To: seller, Value: decimal.NewFromInt(1)})
			assert.NoError(t, err)
		}(services[i%2])
	}
	wg.Wait()

	nonces := map[uint64]bool{}
	for _, tx := range chain.sent {
		nonces[tx.Nonce()] = true
	}

	assert.Len(t, nonces, 8)
}
