package loader

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/pandodao/beanpay/service/wallet"
	"github.com/zyedidia/generic/cache"
	"golang.org/x/sync/singleflight"
)

// loader keeps recently used wallet services alive. Nonce locks live in one
// Locker shared by every service it builds, so eviction never splits them.
type loader struct {
	wallets core.WalletStore
	backend core.ChainBackend
	reader  core.ContractReader
	logger  *slog.Logger
	cfg     wallet.Config

	services *cache.Cache[string, core.WalletService]
	mux      sync.Mutex
	sf       singleflight.Group
}

func New(
	wallets core.WalletStore,
	backend core.ChainBackend,
	reader core.ContractReader,
	logger *slog.Logger,
	cfg wallet.Config,
) core.WalletLoader {
	if cfg.Locks == nil {
		cfg.Locks = wallet.NewLocker()
	}

	return &loader{
		wallets:  wallets,
		backend:  backend,
		reader:   reader,
		logger:   logger,
		cfg:      cfg,
		services: cache.New[string, core.WalletService](1024),
	}
}

func (s *loader) cached(userID string) (core.WalletService, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.services.Get(userID)
}

func (s *loader) LoadWallet(ctx context.Context, userID string) (core.WalletService, error) {
	if v, ok := s.cached(userID); ok {
		return v, nil
	}

	v, err, _ := s.sf.Do(userID, func() (interface{}, error) {
		if v, ok := s.cached(userID); ok {
			return v, nil
		}

		return s.load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return v.(core.WalletService), nil
}

func (s *loader) load(ctx context.Context, userID string) (core.WalletService, error) {
	w, err := s.wallets.Find(ctx, userID)
	if err != nil {
		return nil, err
	}

	ring, err := keyring.New(w.SeedPhrase)
	if err != nil {
		return nil, err
	}

	primary, err := ring.Key(0)
	if err != nil {
		return nil, err
	}

	if address := primary.Address.Hex(); address != w.PrimaryAccount {
		if err := s.wallets.UpdatePrimaryAccount(ctx, userID, address); err != nil {
			s.logger.Error("wallets.UpdatePrimaryAccount", "user", userID, "err", err)
			return nil, err
		}
	}

	v := wallet.New(s.backend, s.reader, ring, s.logger.With("user", userID), s.cfg)

	s.mux.Lock()
	s.services.Put(userID, v)
	s.mux.Unlock()

	return v, nil
}
