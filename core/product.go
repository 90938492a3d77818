package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodUSDC PaymentMethod = "USDC"
	PaymentMethodUSDT PaymentMethod = "USDT"
	PaymentMethodAVAX PaymentMethod = "AVAX"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodUSDC, PaymentMethodUSDT, PaymentMethodAVAX:
		return true
	default:
		return false
	}
}

type Product struct {
	ID     uint64          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

// ContractReader is read only. Balances and allowances are always read fresh.
type ContractReader interface {
	NativeBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	FindProduct(ctx context.Context, id uint64) (*Product, error)
}

// CatalogService serves the store's products from memory, refreshed from the contract.
type CatalogService interface {
	List(ctx context.Context) ([]*Product, error)
	Find(ctx context.Context, id uint64) (*Product, error)
	Sync(ctx context.Context) error
}
