package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/accounts"
	"github.com/pandodao/beanpay/service/contract"
	"github.com/shopspring/decimal"
)

// settleTimeout bounds confirmation, notification and refresh once the
// payment transaction is broadcast.
const settleTimeout = 2 * time.Minute

type Config struct {
	Store string `valid:"required"`
	USDC  string `valid:"required"`
	USDT  string `valid:"required"`
}

type service struct {
	wallets  core.WalletLoader
	caches   *accounts.Pool
	reader   core.ContractReader
	notifier core.PaymentNotifier
	logger   *slog.Logger
	now      func() time.Time

	store  common.Address
	tokens map[core.PaymentMethod]common.Address
}

func New(
	wallets core.WalletLoader,
	caches *accounts.Pool,
	reader core.ContractReader,
	notifier core.PaymentNotifier,
	logger *slog.Logger,
	cfg Config,
) core.CheckoutService {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	return &service{
		wallets:  wallets,
		caches:   caches,
		reader:   reader,
		notifier: notifier,
		logger:   logger.With("service", "checkout"),
		now:      time.Now,
		store:    common.HexToAddress(cfg.Store),
		tokens: map[core.PaymentMethod]common.Address{
			core.PaymentMethodUSDC: common.HexToAddress(cfg.USDC),
			core.PaymentMethodUSDT: common.HexToAddress(cfg.USDT),
		},
	}
}

func (s *service) Pay(ctx context.Context, userID string, req *core.CheckoutRequest) (*core.CheckoutReceipt, error) {
	payload, ok := core.ParseQRPayload([]byte(req.Payload))
	if !ok {
		return nil, core.ErrInvalidQRFormat
	}

	if payload.Remaining(s.now()) <= 0 {
		return nil, core.ErrSessionExpired
	}

	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedMethod, req.Method)
	}

	if !common.IsHexAddress(payload.WalletAddress) {
		return nil, core.ErrInvalidQRFormat
	}

	amount, err := payload.AmountValue()
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.LoadWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	buyer, err := wallet.Address(req.Index)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("session", payload.SessionID, "user", userID, "method", req.Method)
	receipt := &core.CheckoutReceipt{
		SessionID:    payload.SessionID,
		Method:       req.Method,
		BuyerAddress: buyer,
	}

	p := &payment{
		wallet:  wallet,
		logger:  logger,
		userID:  userID,
		buyer:   buyer,
		req:     req,
		receipt: receipt,
	}

	seller := common.HexToAddress(payload.WalletAddress)
	var result *core.TransactionResult

	switch {
	case req.Method == core.PaymentMethodAVAX:
		if !req.NativeValue.IsPositive() {
			return nil, fmt.Errorf("%w: native value is required for AVAX", core.ErrInvalidAmount)
		}

		result, err = wallet.SendNative(ctx, &core.NativeTx{
			Index: req.Index,
			To:    seller,
			Value: req.NativeValue,
		})
	case payload.ProductID != nil:
		result, err = s.purchase(ctx, p, *payload.ProductID, amount)
	default:
		result, err = wallet.TransferToken(ctx, &core.TokenTransfer{
			Index:     req.Index,
			Token:     s.tokens[req.Method],
			Recipient: seller,
			Amount:    amount,
		})
	}

	if err != nil {
		logger.Error("payment failed", "err", err)
		return nil, err
	}

	// the payment is on chain; finish settling even if the caller goes away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	receipt.PaymentTxHash = result.Hash
	if receipt.Confirmation, err = s.wait(ctx, p, result.Hash); err != nil {
		logger.Error("payment not confirmed", "tx", result.Hash, "err", err)
		return nil, err
	}

	notification := &core.PaymentNotification{
		SessionID:     payload.SessionID,
		TxHash:        result.Hash.Hex(),
		BuyerAddress:  buyer.Hex(),
		PaymentMethod: req.Method,
	}

	if req.Method != core.PaymentMethodAVAX {
		notification.Amount = &amount
	}

	// the payment is final on chain; delivery problems are reported, not returned
	if err := s.notifier.Notify(ctx, notification); err != nil {
		logger.Error("notifier.Notify", "tx", result.Hash, "err", err)
		receipt.NotifyErr = err
		receipt.NotifyError = err.Error()
	} else {
		receipt.Notified = true
	}

	s.refresh(ctx, userID, req.Index)
	logger.Info("session paid", "tx", result.Hash, "block", receipt.Confirmation.BlockNumber)
	return receipt, nil
}

type payment struct {
	wallet  core.WalletService
	logger  *slog.Logger
	userID  string
	buyer   common.Address
	req     *core.CheckoutRequest
	receipt *core.CheckoutReceipt
}

// purchase buys the product through the store contract, approving the
// spend first only when the current allowance does not cover it.
func (s *service) purchase(ctx context.Context, p *payment, productID uint64, amount decimal.Decimal) (*core.TransactionResult, error) {
	token := s.tokens[p.req.Method]

	allowance, err := s.reader.Allowance(ctx, token, p.buyer, s.store)
	if err != nil {
		return nil, err
	}

	if allowance.LessThan(amount) {
		data, err := contract.PackApprove(s.store, amount)
		if err != nil {
			return nil, err
		}

		approve, err := p.wallet.SendContract(ctx, &core.ContractCall{Index: p.req.Index, To: token, Data: data})
		if err != nil {
			return nil, err
		}

		p.receipt.ApproveTxHash = &approve.Hash
		p.logger.Info("approve sent", "tx", approve.Hash, "allowance", allowance, "amount", amount)

		if _, err := s.wait(ctx, p, approve.Hash); err != nil {
			return nil, err
		}
	} else {
		p.logger.Debug("allowance covers amount, approve skipped", "allowance", allowance)
	}

	data, err := contract.PackPurchase(p.req.Method, productID)
	if err != nil {
		return nil, err
	}

	return p.wallet.SendContract(ctx, &core.ContractCall{Index: p.req.Index, To: s.store, Data: data})
}

func (s *service) wait(ctx context.Context, p *payment, hash common.Hash) (*core.Confirmation, error) {
	confirmation, err := p.wallet.WaitConfirmation(ctx, hash)
	if errors.Is(err, core.ErrConfirmationTimeout) {
		s.refresh(ctx, p.userID, p.req.Index)
	}

	return confirmation, err
}

// refresh is best effort.
func (s *service) refresh(ctx context.Context, userID string, index uint32) {
	cache, err := s.caches.Cache(ctx, userID)
	if err != nil {
		s.logger.Warn("caches.Cache", "user", userID, "err", err)
		return
	}

	cache.Track(index)
	if err := cache.Refresh(ctx); err != nil {
		s.logger.Warn("cache.Refresh", "user", userID, "err", err)
	}
}
