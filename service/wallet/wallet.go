package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/contract"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const nativeTransferGas = 21000

type Config struct {
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// Locks is private to the service when nil.
	Locks *Locker
}

func (cfg *Config) defaults() {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 30 * time.Second
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	if cfg.Locks == nil {
		cfg.Locks = NewLocker()
	}
}

func New(
	backend core.ChainBackend,
	reader core.ContractReader,
	ring *keyring.Keyring,
	logger *slog.Logger,
	cfg Config,
) core.WalletService {
	cfg.defaults()

	return &service{
		backend: backend,
		reader:  reader,
		ring:    ring,
		logger:  logger.With("service", "wallet"),
		cfg:     cfg,
	}
}

type service struct {
	backend core.ChainBackend
	reader  core.ContractReader
	ring    *keyring.Keyring
	logger  *slog.Logger
	cfg     Config

	mux     sync.Mutex
	chainID *big.Int
}

func (s *service) getChainID(ctx context.Context) (*big.Int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.chainID != nil {
		return s.chainID, nil
	}

	id, err := s.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %w", core.ErrNetwork, err)
	}

	s.chainID = id
	return id, nil
}

func (s *service) Address(index uint32) (common.Address, error) {
	key, err := s.ring.Key(index)
	if err != nil {
		return common.Address{}, err
	}

	return key.Address, nil
}

func (s *service) Summary(ctx context.Context, index uint32, tokens []common.Address) (*core.Account, error) {
	key, err := s.ring.Key(index)
	if err != nil {
		return nil, err
	}

	var (
		native   decimal.Decimal
		balances = make([]decimal.Decimal, len(tokens))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.reader.NativeBalance(ctx, key.Address)
		native = v
		return err
	})

	for idx, token := range tokens {
		idx, token := idx, token
		g.Go(func() error {
			v, err := s.reader.TokenBalance(ctx, token, key.Address)
			balances[idx] = v
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	account := &core.Account{
		Index:          index,
		DerivationPath: key.Path,
		Address:        key.Address,
		NativeBalance:  native,
		TokenBalances:  make(map[common.Address]decimal.Decimal, len(tokens)),
	}

	for idx, token := range tokens {
		account.TokenBalances[token] = balances[idx]
	}

	return account, nil
}

func (s *service) SendNative(ctx context.Context, tx *core.NativeTx) (*core.TransactionResult, error) {
	fee := tx.Fee
	if fee == nil {
		fee = &core.FeeParams{}
	}

	if fee.GasLimit == 0 {
		fee = &core.FeeParams{GasPrice: fee.GasPrice, GasLimit: nativeTransferGas}
	}

	return s.submit(ctx, tx.Index, tx.To, tx.Value, nil, fee)
}

func (s *service) TransferToken(ctx context.Context, transfer *core.TokenTransfer) (*core.TransactionResult, error) {
	key, err := s.ring.Key(transfer.Index)
	if err != nil {
		return nil, err
	}

	balance, err := s.reader.TokenBalance(ctx, transfer.Token, key.Address)
	if err != nil {
		return nil, err
	}

	if balance.LessThan(transfer.Amount) {
		return nil, fmt.Errorf("%w: have %s, want %s", core.ErrInsufficientBalance, balance, transfer.Amount)
	}

	data, err := contract.PackTransfer(transfer.Recipient, transfer.Amount)
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, transfer.Index, transfer.Token, decimal.Zero, data, nil)
}

func (s *service) SendContract(ctx context.Context, call *core.ContractCall) (*core.TransactionResult, error) {
	return s.submit(ctx, call.Index, call.To, call.Value, call.Data, nil)
}

func (s *service) submit(ctx context.Context, index uint32, to common.Address, value decimal.Decimal, data []byte, fee *core.FeeParams) (*core.TransactionResult, error) {
	key, err := s.ring.Key(index)
	if err != nil {
		return nil, err
	}

	amount, err := contract.BigInt(value)
	if err != nil {
		return nil, err
	}

	chainID, err := s.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.cfg.Locks.Lock(key.Address)
	defer unlock()

	var gasPrice *big.Int
	if fee != nil && fee.GasPrice.IsPositive() {
		gasPrice = fee.GasPrice.BigInt()
	} else if gasPrice, err = s.backend.SuggestGasPrice(ctx); err != nil {
		return nil, fmt.Errorf("%w: gas price: %w", core.ErrNetwork, err)
	}

	var gasLimit uint64
	if fee != nil && fee.GasLimit > 0 {
		gasLimit = fee.GasLimit
	} else if gasLimit, err = s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  key.Address,
		To:    &to,
		Value: amount,
		Data:  data,
	}); err != nil {
		return nil, classify("estimate gas", err)
	}

	maxFee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))

	balance, err := s.backend.BalanceAt(ctx, key.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: balance: %w", core.ErrNetwork, err)
	}

	if cost := new(big.Int).Add(amount, maxFee); balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: have %s, want %s", core.ErrInsufficientBalance, balance, cost)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, key.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", core.ErrNetwork, err)
	}

	signed, err := key.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    amount,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}), chainID)
	if err != nil {
		return nil, fmt.Errorf("sign transaction failed: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, classify("send transaction", err)
	}

	s.logger.Debug("transaction sent", "index", index, "hash", signed.Hash().Hex(), "nonce", nonce, "to", to.Hex())

	feeValue := decimal.NewFromBigInt(maxFee, 0)
	return &core.TransactionResult{
		Hash: signed.Hash(),
		Fee:  &feeValue,
	}, nil
}

func (s *service) WaitConfirmation(ctx context.Context, hash common.Hash) (*core.Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	var lastErr error
	for {
		receipt, err := s.backend.TransactionReceipt(waitCtx, hash)
		if err == nil {
			c := &core.Confirmation{
				Hash:    hash,
				GasUsed: receipt.GasUsed,
				Status:  receipt.Status,
			}

			if receipt.BlockNumber != nil {
				c.BlockNumber = receipt.BlockNumber.Uint64()
			}

			if receipt.Status == types.ReceiptStatusFailed {
				return c, fmt.Errorf("%w: %s reverted", core.ErrTransactionFailed, hash.Hex())
			}

			return c, nil
		}

		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
			s.logger.Debug("read receipt", "hash", hash.Hex(), "err", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s: %w", core.ErrConfirmationTimeout, hash.Hex(), lastErr)
			}

			return nil, fmt.Errorf("%w: %s", core.ErrConfirmationTimeout, hash.Hex())
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func classify(op string, err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %s: %w", core.ErrInsufficientBalance, op, err)
	case strings.Contains(msg, "revert"):
		return fmt.Errorf("%w: %s: %w", core.ErrTransactionFailed, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", core.ErrNetwork, op, err)
	}
}
