package vault

import (
	"context"
	"log/slog"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/pandodao/beanpay/store"
)

type service struct {
	wallets core.WalletStore
	logger  *slog.Logger
}

func New(wallets core.WalletStore, logger *slog.Logger) core.VaultService {
	return &service{
		wallets: wallets,
		logger:  logger.With("service", "vault"),
	}
}

// Create returns the user's wallet, generating the secret on first use.
func (s *service) Create(ctx context.Context, userID string) (*core.Wallet, error) {
	if w, err := s.wallets.Find(ctx, userID); err == nil {
		return w, nil
	} else if !store.IsErrNotFound(err) {
		return nil, err
	}

	mnemonic, err := keyring.NewMnemonic()
	if err != nil {
		return nil, err
	}

	primary, err := keyring.Derive(mnemonic, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.wallets.Create(ctx, &core.Wallet{
		UserID:         userID,
		SeedPhrase:     mnemonic,
		PrimaryAccount: primary.Address.Hex(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		s.logger.Error("wallets.Create", "user", userID, "err", err)
		return nil, err
	}

	// a concurrent create may have won; the stored row is authoritative
	w, err := s.wallets.Find(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet created", "user", userID, "primary_account", w.PrimaryAccount)
	return w, nil
}
