package contract

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	storeAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	usdcAddr  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	owner     = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
)

type fakeBackend struct {
	core.ChainBackend
	balance *big.Int
	call    func(msg ethereum.CallMsg) ([]byte, error)
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if f.balance == nil {
		return nil, errors.New("connection refused")
	}

	return f.balance, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.call(msg)
}

func selector(contract string, method string) []byte {
	if contract == "erc20" {
		return erc20ABI.Methods[method].ID
	}

	return storeABI.Methods[method].ID
}

func TestReaderTokenReads(t *testing.T) {
	backend := &fakeBackend{
		balance: big.NewInt(42),
		call: func(msg ethereum.CallMsg) ([]byte, error) {
			require.Equal(t, usdcAddr, *msg.To)

			switch {
			case bytes.HasPrefix(msg.Data, selector("erc20", "balanceOf")):
				return erc20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(5_000_000))
			case bytes.HasPrefix(msg.Data, selector("erc20", "allowance")):
				return erc20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(1_000_000))
			}

			return nil, errors.New("unexpected call")
		},
	}

	r := New(backend, Config{Store: storeAddr.Hex()})
	ctx := context.Background()

	native, err := r.NativeBalance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, native.Equal(decimal.NewFromInt(42)))

	balance, err := r.TokenBalance(ctx, usdcAddr, owner)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(5_000_000)))

	allowance, err := r.Allowance(ctx, usdcAddr, owner, storeAddr)
	require.NoError(t, err)
	assert.True(t, allowance.Equal(decimal.NewFromInt(1_000_000)))
}

func TestReaderProducts(t *testing.T) {
	items := []product{
		{Id: big.NewInt(1), Name: "Espresso", Price: big.NewInt(3_000_000), Active: true},
		{Id: big.NewInt(2), Name: "Flat White", Price: big.NewInt(5_000_000), Active: false},
	}

	backend := &fakeBackend{
		call: func(msg ethereum.CallMsg) ([]byte, error) {
			require.Equal(t, storeAddr, *msg.To)

			switch {
			case bytes.HasPrefix(msg.Data, selector("store", "getAllProducts")):
				return storeABI.Methods["getAllProducts"].Outputs.Pack(items)
			case bytes.HasPrefix(msg.Data, selector("store", "getProduct")):
				return storeABI.Methods["getProduct"].Outputs.Pack(items[1])
			}

			return nil, errors.New("unexpected call")
		},
	}

	r := New(backend, Config{Store: storeAddr.Hex()})

	products, err := r.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Espresso", products[0].Name)
	assert.True(t, products[0].Price.Equal(decimal.NewFromInt(3_000_000)))

	p, err := r.FindProduct(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.ID)
	assert.False(t, p.Active)
}

func TestReaderNetworkError(t *testing.T) {
	backend := &fakeBackend{
		call: func(msg ethereum.CallMsg) ([]byte, error) {
			return nil, errors.New("503 service unavailable")
		},
	}

	r := New(backend, Config{Store: storeAddr.Hex()})

	_, err := r.TokenBalance(context.Background(), usdcAddr, owner)
	assert.ErrorIs(t, err, core.ErrNetwork)

	_, err = r.NativeBalance(context.Background(), owner)
	assert.ErrorIs(t, err, core.ErrNetwork)

	_, err = r.ListProducts(context.Background())
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestPackPurchase(t *testing.T) {
	data, err := PackPurchase(core.PaymentMethodUSDT, 7)
	require.NoError(t, err)
	assert.Equal(t, selector("store", "purchaseWithUSDT"), data[:4])

	_, err = PackPurchase(core.PaymentMethodAVAX, 7)
	assert.ErrorIs(t, err, core.ErrUnsupportedMethod)
}

func TestBigInt(t *testing.T) {
	v, err := BigInt(decimal.NewFromInt(5_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), v.Int64())

	_, err = BigInt(decimal.RequireFromString("1.5"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = BigInt(decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}
