package accounts

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/zyedidia/generic/mapset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type snapshot map[uint32]*core.Account

// Cache holds the last complete read of a user's tracked accounts. Readers
// never see a partially refreshed view. Balances here must not drive
// allowance decisions; read those fresh from the chain.
type Cache struct {
	wallet core.WalletService

	mux     sync.Mutex
	indices mapset.Set[uint32]
	tokens  mapset.Set[common.Address]

	current atomic.Pointer[snapshot]
	sf      singleflight.Group
}

func New(wallet core.WalletService, indices []uint32, tokens []common.Address) *Cache {
	c := &Cache{
		wallet:  wallet,
		indices: mapset.New[uint32](),
		tokens:  mapset.New[common.Address](),
	}

	c.indices.Put(0)
	for _, idx := range indices {
		c.indices.Put(idx)
	}

	for _, token := range tokens {
		c.tokens.Put(token)
	}

	c.current.Store(&snapshot{})
	return c
}

// Track adds an index to the next refresh.
func (c *Cache) Track(index uint32) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.indices.Put(index)
}

func (c *Cache) tracked() ([]uint32, []common.Address) {
	c.mux.Lock()
	defer c.mux.Unlock()

	var (
		indices []uint32
		tokens  []common.Address
	)

	c.indices.Each(func(idx uint32) { indices = append(indices, idx) })
	c.tokens.Each(func(token common.Address) { tokens = append(tokens, token) })

	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Cmp(tokens[j]) < 0 })
	return indices, tokens
}

// Refresh re-reads every tracked account and replaces the snapshot only when
// all reads succeeded. Concurrent calls share one read.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.sf.Do("refresh", func() (interface{}, error) {
		return nil, c.refresh(ctx)
	})

	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	indices, tokens := c.tracked()
	accounts := make([]*core.Account, len(indices))

	g, ctx := errgroup.WithContext(ctx)
	for i, idx := range indices {
		i, idx := i, idx
		g.Go(func() error {
			account, err := c.wallet.Summary(ctx, idx, tokens)
			if err != nil {
				return err
			}

			accounts[i] = account
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	next := make(snapshot, len(accounts))
	for _, account := range accounts {
		next[account.Index] = account
	}

	c.current.Store(&next)
	return nil
}

func (c *Cache) Get(index uint32) (*core.Account, bool) {
	account, ok := (*c.current.Load())[index]
	return account, ok
}

// List returns the snapshot ordered by index.
func (c *Cache) List() []*core.Account {
	snap := *c.current.Load()

	accounts := make([]*core.Account, 0, len(snap))
	for _, account := range snap {
		accounts = append(accounts, account)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Index < accounts[j].Index })
	return accounts
}
