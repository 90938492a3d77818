package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// Account is derived from the secret and an index, never persisted.
type Account struct {
	Index          uint32                             `json:"index"`
	DerivationPath string                             `json:"derivation_path"`
	Address        common.Address                     `json:"address"`
	NativeBalance  decimal.Decimal                    `json:"native_balance"`
	TokenBalances  map[common.Address]decimal.Decimal `json:"token_balances"`
}

type FeeParams struct {
	GasPrice decimal.Decimal `json:"gas_price,omitempty"`
	GasLimit uint64          `json:"gas_limit,omitempty"`
}

type NativeTx struct {
	Index uint32
	To    common.Address
	Value decimal.Decimal
	Fee   *FeeParams
}

type TokenTransfer struct {
	Index     uint32
	Token     common.Address
	Recipient common.Address
	Amount    decimal.Decimal
}

type ContractCall struct {
	Index uint32
	To    common.Address
	Data  []byte
	Value decimal.Decimal
}

type TransactionResult struct {
	Hash common.Hash      `json:"hash"`
	Fee  *decimal.Decimal `json:"fee,omitempty"`
}

type Confirmation struct {
	Hash        common.Hash `json:"hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Status      uint64      `json:"status"`
}

// ChainBackend is the subset of *ethclient.Client the wallet needs.
type ChainBackend interface {
	ethereum.ContractCaller
	ethereum.GasPricer
	ethereum.GasEstimator
	ethereum.TransactionSender
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}
