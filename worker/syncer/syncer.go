package syncer

import (
	"context"
	"log/slog"
	"time"
)

type Catalog interface {
	Sync(ctx context.Context) error
}

func New(catalog Catalog, logger *slog.Logger) *Syncer {
	return &Syncer{
		catalog: catalog,
		logger:  logger.With("worker", "syncer"),
	}
}

// Syncer refreshes the product catalog from the store contract.
type Syncer struct {
	catalog Catalog
	logger  *slog.Logger
}

func (w *Syncer) Run(ctx context.Context) error {
	w.logger.Info("syncer start")

	for {
		dur := 5 * time.Second
		if w.run(ctx) == nil {
			dur = 30 * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (w *Syncer) run(ctx context.Context) error {
	if err := w.catalog.Sync(ctx); err != nil {
		w.logger.Error("catalog.Sync", "err", err)
		return err
	}

	w.logger.Debug("catalog synced")
	return nil
}
