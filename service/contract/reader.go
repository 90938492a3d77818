package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/shopspring/decimal"
)

type Config struct {
	Store string `valid:"required"`
}

func New(backend core.ChainBackend, cfg Config) core.ContractReader {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if !common.IsHexAddress(cfg.Store) {
		panic(fmt.Errorf("invalid store contract address %q", cfg.Store))
	}

	return &reader{
		backend: backend,
		store:   common.HexToAddress(cfg.Store),
	}
}

type reader struct {
	backend core.ChainBackend
	store   common.Address
}

func (r *reader) call(ctx context.Context, to common.Address, contract *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrNetwork, method, err)
	}

	values, err := contract.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", core.ErrNetwork, method, err)
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s returned nothing", core.ErrNetwork, method)
	}

	return values, nil
}

func (r *reader) callUint(ctx context.Context, to common.Address, method string, args ...any) (decimal.Decimal, error) {
	values, err := r.call(ctx, to, &erc20ABI, method, args...)
	if err != nil {
		return decimal.Zero, err
	}

	v, ok := values[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s returned %T", core.ErrNetwork, method, values[0])
	}

	return decimal.NewFromBigInt(v, 0), nil
}

func (r *reader) NativeBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	v, err := r.backend.BalanceAt(ctx, owner, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: balance: %w", core.ErrNetwork, err)
	}

	return decimal.NewFromBigInt(v, 0), nil
}

func (r *reader) TokenBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	return r.callUint(ctx, token, "balanceOf", owner)
}

func (r *reader) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	return r.callUint(ctx, token, "allowance", owner, spender)
}

func (r *reader) ListProducts(ctx context.Context) ([]*core.Product, error) {
	values, err := r.call(ctx, r.store, &storeABI, "getAllProducts")
	if err != nil {
		return nil, err
	}

	items := *abi.ConvertType(values[0], new([]product)).(*[]product)
	products := make([]*core.Product, 0, len(items))
	for _, item := range items {
		products = append(products, item.core())
	}

	return products, nil
}

func (r *reader) FindProduct(ctx context.Context, id uint64) (*core.Product, error) {
	values, err := r.call(ctx, r.store, &storeABI, "getProduct", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}

	item := *abi.ConvertType(values[0], new(product)).(*product)
	return item.core(), nil
}
