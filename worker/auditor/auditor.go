package auditor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/zyedidia/generic/mapset"
)

const propertyAuditOffset = "wallet_audit_offset"

var errRoundDone = errors.New("audit round done")

type Config struct {
	BatchSize int           `valid:"required"`
	Pause     time.Duration `valid:"required"`
}

// Auditor walks every stored wallet and keeps primary_account equal to the
// address derived from the stored secret.
type Auditor struct {
	wallets    core.WalletStore
	properties core.PropertyStore
	logger     *slog.Logger
	cfg        Config

	// users whose secret failed to derive, reported once per process
	broken mapset.Set[string]
}

func New(
	wallets core.WalletStore,
	properties core.PropertyStore,
	logger *slog.Logger,
	cfg Config,
) *Auditor {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &Auditor{
		wallets:    wallets,
		properties: properties,
		logger:     logger.With("worker", "auditor"),
		cfg:        cfg,
		broken:     mapset.New[string](),
	}
}

func (w *Auditor) Run(ctx context.Context) error {
	w.logger.Info("auditor start")

	for {
		dur := time.Second
		switch err := w.run(ctx); {
		case err == nil:
			dur = 100 * time.Millisecond
		case errors.Is(err, errRoundDone):
			dur = w.cfg.Pause
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (w *Auditor) run(ctx context.Context) error {
	var offset string
	if err := w.properties.Get(ctx, propertyAuditOffset, &offset); err != nil {
		w.logger.Error("properties.Get", "err", err)
		return err
	}

	wallets, err := w.wallets.List(ctx, offset, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("wallets.List", "err", err)
		return err
	}

	for _, wallet := range wallets {
		if err := w.audit(ctx, wallet); err != nil {
			return err
		}

		offset = wallet.UserID
	}

	done := len(wallets) < w.cfg.BatchSize
	if done {
		offset = ""
	}

	if err := w.properties.Set(ctx, propertyAuditOffset, offset); err != nil {
		w.logger.Error("properties.Set", "err", err)
		return err
	}

	if done {
		return errRoundDone
	}

	return nil
}

func (w *Auditor) audit(ctx context.Context, wallet *core.Wallet) error {
	logger := w.logger.With("user", wallet.UserID)

	key, err := keyring.Derive(wallet.SeedPhrase, 0)
	if err != nil {
		if !w.broken.Has(wallet.UserID) {
			w.broken.Put(wallet.UserID)
			logger.Error("stored secret unusable", "err", err)
		}
		return nil
	}

	if address := key.Address.Hex(); address != wallet.PrimaryAccount {
		logger.Warn("primary account drift", "stored", wallet.PrimaryAccount, "derived", address)
		if err := w.wallets.UpdatePrimaryAccount(ctx, wallet.UserID, address); err != nil {
			logger.Error("wallets.UpdatePrimaryAccount", "err", err)
			return err
		}
	}

	return nil
}
