package accounts

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pandodao/beanpay/core"
	"golang.org/x/sync/singleflight"
)

// Pool keeps one Cache per user.
type Pool struct {
	wallets core.WalletLoader
	tokens  []common.Address
	caches  *lru.Cache[string, *Cache]
	sf      singleflight.Group
}

func NewPool(wallets core.WalletLoader, tokens []common.Address) *Pool {
	caches, err := lru.New[string, *Cache](1024)
	if err != nil {
		panic(err)
	}

	return &Pool{
		wallets: wallets,
		tokens:  tokens,
		caches:  caches,
	}
}

// Cache returns the user's cache, loading and filling it on first use.
func (p *Pool) Cache(ctx context.Context, userID string) (*Cache, error) {
	if c, ok := p.caches.Get(userID); ok {
		return c, nil
	}

	v, err, _ := p.sf.Do(userID, func() (interface{}, error) {
		if c, ok := p.caches.Get(userID); ok {
			return c, nil
		}

		wallet, err := p.wallets.LoadWallet(ctx, userID)
		if err != nil {
			return nil, err
		}

		c := New(wallet, nil, p.tokens)
		if err := c.Refresh(ctx); err != nil {
			return nil, err
		}

		p.caches.Add(userID, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Cache), nil
}
