package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/generic"
	"github.com/shopspring/decimal"
)

const erc20JSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

const storeJSON = `[
{"type":"function","name":"purchaseWithUSDC","stateMutability":"nonpayable","inputs":[{"name":"productId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"purchaseWithUSDT","stateMutability":"nonpayable","inputs":[{"name":"productId","type":"uint256"}],"outputs":[]},
{"type":"function","name":"getAllProducts","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"tuple[]","components":[{"name":"id","type":"uint256"},{"name":"name","type":"string"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}]}]},
{"type":"function","name":"getProduct","stateMutability":"view","inputs":[{"name":"productId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"id","type":"uint256"},{"name":"name","type":"string"},{"name":"price","type":"uint256"},{"name":"active","type":"bool"}]}]}
]`

var (
	erc20ABI = generic.Must(abi.JSON(strings.NewReader(erc20JSON)))
	storeABI = generic.Must(abi.JSON(strings.NewReader(storeJSON)))
)

// product mirrors the solidity struct returned by the store contract.
type product struct {
	Id     *big.Int `abi:"id"`
	Name   string   `abi:"name"`
	Price  *big.Int `abi:"price"`
	Active bool     `abi:"active"`
}

func (p product) core() *core.Product {
	return &core.Product{
		ID:     p.Id.Uint64(),
		Name:   p.Name,
		Price:  decimal.NewFromBigInt(p.Price, 0),
		Active: p.Active,
	}
}

// BigInt converts an integer amount in base units.
func BigInt(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidAmount, amount)
	}

	return amount.BigInt(), nil
}

func PackTransfer(to common.Address, amount decimal.Decimal) ([]byte, error) {
	v, err := BigInt(amount)
	if err != nil {
		return nil, err
	}

	return erc20ABI.Pack("transfer", to, v)
}

func PackApprove(spender common.Address, amount decimal.Decimal) ([]byte, error) {
	v, err := BigInt(amount)
	if err != nil {
		return nil, err
	}

	return erc20ABI.Pack("approve", spender, v)
}

func PackPurchase(method core.PaymentMethod, productID uint64) ([]byte, error) {
	id := new(big.Int).SetUint64(productID)

	switch method {
	case core.PaymentMethodUSDC:
		return storeABI.Pack("purchaseWithUSDC", id)
	case core.PaymentMethodUSDT:
		return storeABI.Pack("purchaseWithUSDT", id)
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedMethod, method)
	}
}
