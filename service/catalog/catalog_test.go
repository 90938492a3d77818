package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	core.ContractReader

	mux      sync.Mutex
	products []*core.Product
	lists    int
	finds    int
}

func (f *fakeReader) ListProducts(ctx context.Context) ([]*core.Product, error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	f.lists++
	products := make([]*core.Product, 0, len(f.products))
	for _, p := range f.products {
		clone := *p
		products = append(products, &clone)
	}
	return products, nil
}

func (f *fakeReader) deactivate(id uint64) {
	f.mux.Lock()
	defer f.mux.Unlock()

	for _, p := range f.products {
		if p.ID == id {
			p.Active = false
		}
	}
}

func (f *fakeReader) FindProduct(ctx context.Context, id uint64) (*core.Product, error) {
	f.finds++
	return &core.Product{ID: id, Name: "Mocha", Price: decimal.NewFromInt(4000000), Active: true}, nil
}

func TestCatalog(t *testing.T) {
	reader := &fakeReader{products: []*core.Product{
		{ID: 1, Name: "Espresso", Price: decimal.NewFromInt(2000000), Active: true},
		{ID: 2, Name: "Retired", Price: decimal.NewFromInt(1000000), Active: false},
	}}
	s := New(reader)
	ctx := context.Background()

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Espresso", products[0].Name)

	_, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.lists)

	p, err := s.Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Retired", p.Name)
	assert.Equal(t, 0, reader.finds)

	p, err = s.Find(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "Mocha", p.Name)
	assert.Equal(t, 1, reader.finds)

	require.NoError(t, s.Sync(ctx))
	assert.Equal(t, 2, reader.lists)
}

func TestCatalogSeesContractChanges(t *testing.T) {
	reader := &fakeReader{products: []*core.Product{
		{ID: 1, Name: "Espresso", Price: decimal.NewFromInt(2000000), Active: true},
		{ID: 2, Name: "Latte", Price: decimal.NewFromInt(3000000), Active: true},
	}}

	now := time.Unix(1700000000, 0)
	s := New(reader).(*service)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	products, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	reader.deactivate(2)

	// served from memory while fresh
	products, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	now = now.Add(TTL)
	products, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Espresso", products[0].Name)

	p, err := s.Find(ctx, 2)
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestCatalogSyncReplacesProducts(t *testing.T) {
	reader := &fakeReader{products: []*core.Product{
		{ID: 1, Name: "Espresso", Price: decimal.NewFromInt(2000000), Active: true},
	}}
	s := New(reader)
	ctx := context.Background()

	_, err := s.List(ctx)
	require.NoError(t, err)

	reader.deactivate(1)
	require.NoError(t, s.Sync(ctx))

	products, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 2, reader.lists)
}
