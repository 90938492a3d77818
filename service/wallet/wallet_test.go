package wallet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/keyring"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var (
	chainID = big.NewInt(43113)
	usdc    = common.HexToAddress("0x5425890298aed601595a70AB815c96711a31Bc65")
	usdt    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	seller  = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

type fakeChain struct {
	core.ChainBackend

	mux      sync.Mutex
	balance  *big.Int
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	misses   int
	sendErr  error
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) { return chainID, nil }

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(25_000_000_000), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 60_000, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mux.Lock()
	defer f.mux.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}

	// widen the window between nonce read and send
	time.Sleep(time.Millisecond)

	f.mux.Lock()
	defer f.mux.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mux.Lock()
	defer f.mux.Unlock()

	if f.misses > 0 {
		f.misses--
		return nil, ethereum.NotFound
	}

	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}

	return r, nil
}

type fakeReader struct {
	core.ContractReader
	native decimal.Decimal
	tokens map[common.Address]decimal.Decimal
	fail   map[common.Address]bool
}

func (f *fakeReader) NativeBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	return f.native, nil
}

func (f *fakeReader) TokenBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	if f.fail[token] {
		return decimal.Zero, core.ErrNetwork
	}

	return f.tokens[token], nil
}

func newService(t *testing.T, chain *fakeChain, reader *fakeReader) *service {
	ring, err := keyring.New(testMnemonic)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(chain, reader, ring, logger, Config{
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}).(*service)
}

func TestSummary(t *testing.T) {
	reader := &fakeReader{
		native: decimal.NewFromInt(1e18),
		tokens: map[common.Address]decimal.Decimal{
			usdc: decimal.NewFromInt(5_000_000),
			usdt: decimal.NewFromInt(7),
		},
	}

	s := newService(t, &fakeChain{}, reader)
	account, err := s.Summary(context.Background(), 0, []common.Address{usdc, usdt})
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), account.Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", account.DerivationPath)
	assert.True(t, account.NativeBalance.Equal(decimal.NewFromInt(1e18)))
	assert.True(t, account.TokenBalances[usdc].Equal(decimal.NewFromInt(5_000_000)))
	assert.True(t, account.TokenBalances[usdt].Equal(decimal.NewFromInt(7)))
}

func TestSummaryAllOrNothing(t *testing.T) {
	reader := &fakeReader{
		tokens: map[common.Address]decimal.Decimal{usdc: decimal.NewFromInt(1)},
		fail:   map[common.Address]bool{usdt: true},
	}

	s := newService(t, &fakeChain{}, reader)
	account, err := s.Summary(context.Background(), 0, []common.Address{usdc, usdt})
	assert.ErrorIs(t, err, core.ErrNetwork)
	assert.Nil(t, account)
}

func TestSendNative(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1e18)}
	s := newService(t, chain, &fakeReader{})

	result, err := s.SendNative(context.Background(), &core.NativeTx{
		Index: 0,
		To:    seller,
		Value: decimal.NewFromInt(1e15),
	})
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)

	tx := chain.sent[0]
	assert.Equal(t, result.Hash, tx.Hash())
	assert.Equal(t, uint64(nativeTransferGas), tx.Gas())
	assert.Equal(t, seller, *tx.To())

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), from)
}

func TestSendNativeInsufficientBalance(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1000)}
	s := newService(t, chain, &fakeReader{})

	_, err := s.SendNative(context.Background(), &core.NativeTx{To: seller, Value: decimal.NewFromInt(1000)})
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Empty(t, chain.sent)
}

func TestSendRejectedByNode(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1e18), sendErr: errors.New("dial tcp: i/o timeout")}
	s := newService(t, chain, &fakeReader{})

	_, err := s.SendContract(context.Background(), &core.ContractCall{To: seller, Data: []byte{1, 2, 3, 4}})
	assert.ErrorIs(t, err, core.ErrNetwork)
}

func TestTransferTokenInsufficientBalance(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1e18)}
	reader := &fakeReader{tokens: map[common.Address]decimal.Decimal{usdc: decimal.NewFromInt(10)}}
	s := newService(t, chain, reader)

	_, err := s.TransferToken(context.Background(), &core.TokenTransfer{
		Token:     usdc,
		Recipient: seller,
		Amount:    decimal.NewFromInt(11),
	})
	assert.ErrorIs(t, err, core.ErrInsufficientBalance)
	assert.Empty(t, chain.sent)

	_, err = s.TransferToken(context.Background(), &core.TokenTransfer{
		Token:     usdc,
		Recipient: seller,
		Amount:    decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)
	assert.Equal(t, usdc, *chain.sent[0].To())
	assert.Zero(t, chain.sent[0].Value().Sign())
}

func TestSendSerializesNonces(t *testing.T) {
	chain := &fakeChain{balance: big.NewInt(1e18)}
	s := newService(t, chain, &fakeReader{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SendNative(context.Background(), &core.NativeTx{To: seller, Value: decimal.NewFromInt(1)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	nonces := map[uint64]bool{}
	for _, tx := range chain.sent {
		nonces[tx.Nonce()] = true
	}

	assert.Len(t, nonces, 8)
}

func TestWaitConfirmation(t *testing.T) {
	hash := common.HexToHash("0x01")
	chain := &fakeChain{
		misses: 2,
		receipts: map[common.Hash]*types.Receipt{
			hash: {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(12), GasUsed: 50_000},
		},
	}
	s := newService(t, chain, &fakeReader{})

	c, err := s.WaitConfirmation(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), c.BlockNumber)
	assert.Equal(t, uint64(50_000), c.GasUsed)
}

func TestWaitConfirmationReverted(t *testing.T) {
	hash := common.HexToHash("0x02")
	chain := &fakeChain{
		receipts: map[common.Hash]*types.Receipt{
			hash: {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(3)},
		},
	}
	s := newService(t, chain, &fakeReader{})

	_, err := s.WaitConfirmation(context.Background(), hash)
	assert.ErrorIs(t, err, core.ErrTransactionFailed)
}

func TestWaitConfirmationTimeout(t *testing.T) {
	s := newService(t, &fakeChain{}, &fakeReader{})

	start := time.Now()
	_, err := s.WaitConfirmation(context.Background(), common.HexToHash("0x03"))
	assert.ErrorIs(t, err, core.ErrConfirmationTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}
