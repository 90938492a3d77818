package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/zyedidia/generic/cache"
)

// TTL bounds how long a product read from the contract is served without
// asking the contract again.
const TTL = time.Minute

func New(reader core.ContractReader) core.CatalogService {
	return &service{
		reader: reader,
		cache:  cache.New[uint64, entry](1024),
		now:    time.Now,
	}
}

type entry struct {
	product  *core.Product
	loadedAt time.Time
}

type service struct {
	reader core.ContractReader
	now    func() time.Time

	cache    *cache.Cache[uint64, entry]
	products []*core.Product
	syncedAt time.Time
	mux      sync.Mutex
}

func (s *service) fresh(t time.Time) bool {
	return !t.IsZero() && s.now().Sub(t) < TTL
}

func (s *service) Sync(ctx context.Context) error {
	products, err := s.reader.ListProducts(ctx)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	now := s.now()
	for _, p := range products {
		s.cache.Put(p.ID, entry{product: p, loadedAt: now})
	}

	s.products = products
	s.syncedAt = now
	return nil
}

// List returns the active products, syncing when the last sync is stale.
func (s *service) List(ctx context.Context) ([]*core.Product, error) {
	s.mux.Lock()
	synced := s.fresh(s.syncedAt)
	s.mux.Unlock()

	if !synced {
		if err := s.Sync(ctx); err != nil {
			return nil, err
		}
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	active := make([]*core.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			active = append(active, p)
		}
	}

	return active, nil
}

func (s *service) Find(ctx context.Context, id uint64) (*core.Product, error) {
	s.mux.Lock()
	v, ok := s.cache.Get(id)
	s.mux.Unlock()
	if ok && s.fresh(v.loadedAt) {
		return v.product, nil
	}

	product, err := s.reader.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mux.Lock()
	s.cache.Put(product.ID, entry{product: product, loadedAt: s.now()})
	s.mux.Unlock()

	return product, nil
}
