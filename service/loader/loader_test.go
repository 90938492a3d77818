package loader

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/wallet"
	"github.com/pandodao/beanpay/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	primary  = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

type walletStore struct {
	core.WalletStore

	mux     sync.Mutex
	delay   time.Duration
	wallets map[string]*core.Wallet
	finds   int
	updates []string
}

func (s *walletStore) Find(ctx context.Context, userID string) (*core.Wallet, error) {
	time.Sleep(s.delay)

	s.mux.Lock()
	defer s.mux.Unlock()

	s.finds++
	w, ok := s.wallets[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	clone := *w
	return &clone, nil
}

func (s *walletStore) UpdatePrimaryAccount(ctx context.Context, userID, address string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.updates = append(s.updates, address)
	s.wallets[userID].PrimaryAccount = address
	return nil
}

func newLoader(wallets core.WalletStore) core.WalletLoader {
	return New(wallets, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), wallet.Config{})
}

func TestLoadWallet(t *testing.T) {
	wallets := &walletStore{wallets: map[string]*core.Wallet{
		"u1": {UserID: "u1", SeedPhrase: mnemonic, PrimaryAccount: primary},
	}}
	l := newLoader(wallets)

	w, err := l.LoadWallet(context.Background(), "u1")
	require.NoError(t, err)

	address, err := w.Address(0)
	require.NoError(t, err)
	assert.Equal(t, primary, address.Hex())

	again, err := l.LoadWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, w, again)
	assert.Equal(t, 1, wallets.finds)
	assert.Empty(t, wallets.updates)
}

func TestLoadWalletFixesPrimaryAccount(t *testing.T) {
	wallets := &walletStore{wallets: map[string]*core.Wallet{
		"u1": {UserID: "u1", SeedPhrase: mnemonic, PrimaryAccount: "0x0000000000000000000000000000000000000001"},
	}}

	_, err := newLoader(wallets).LoadWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{primary}, wallets.updates)
}

func TestLoadWalletErrors(t *testing.T) {
	wallets := &walletStore{wallets: map[string]*core.Wallet{
		"broken": {UserID: "broken", SeedPhrase: "not a mnemonic"},
	}}
	l := newLoader(wallets)

	_, err := l.LoadWallet(context.Background(), "missing")
	assert.True(t, store.IsErrNotFound(err))

	_, err = l.LoadWallet(context.Background(), "broken")
	assert.ErrorIs(t, err, core.ErrInvalidSecret)
}

func TestLoadWalletConcurrent(t *testing.T) {
	wallets := &walletStore{
		delay: 20 * time.Millisecond,
		wallets: map[string]*core.Wallet{
			"u1": {UserID: "u1", SeedPhrase: mnemonic, PrimaryAccount: primary},
			"u2": {UserID: "u2", SeedPhrase: mnemonic, PrimaryAccount: primary},
		},
	}
	l := newLoader(wallets)

	const n = 8
	loaded := make([]core.WalletService, 2*n)

	var wg sync.WaitGroup
	for i := range loaded {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			userID := "u1"
			if i%2 == 1 {
				userID = "u2"
			}

			w, err := l.LoadWallet(context.Background(), userID)
			assert.NoError(t, err)
			loaded[i] = w
		}(i)
	}
	wg.Wait()

	for i := 2; i < len(loaded); i++ {
		assert.Same(t, loaded[i%2], loaded[i])
	}
	assert.NotSame(t, loaded[0], loaded[1])
	assert.Equal(t, 2, wallets.finds)
}
