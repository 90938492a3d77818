package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/handler/render"
	"github.com/shopspring/decimal"
)

type walletView struct {
	UserID         string `json:"user_id"`
	PrimaryAccount string `json:"primary_account"`
}

func (s *Server) createWallet(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())

	v, err, _ := s.sf.Do("wallet:"+userID, func() (interface{}, error) {
		return s.vault.Create(r.Context(), userID)
	})
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	wallet := v.(*core.Wallet)
	render.Data(w, http.StatusOK, walletView{UserID: wallet.UserID, PrimaryAccount: wallet.PrimaryAccount})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.List(r.Context())
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusOK, products)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cache, err := s.caches.Cache(ctx, userFrom(ctx))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	if r.URL.Query().Get("refresh") != "" {
		if err := cache.Refresh(ctx); err != nil {
			s.renderErr(w, r, err)
			return
		}
	}

	render.Data(w, http.StatusOK, cache.List())
}

type transferRequest struct {
	Index uint32          `json:"index"`
	To    string          `json:"to"`
	Token string          `json:"token,omitempty"`
	Value decimal.Decimal `json:"value"`
	Wait  bool            `json:"wait"`
}

type transferView struct {
	*core.TransactionResult
	Confirmation *core.Confirmation `json:"confirmation,omitempty"`
}

// createTransfer sends AVAX, or the ERC-20 token when token is set.
func (s *Server) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	if !common.IsHexAddress(req.To) || (req.Token != "" && !common.IsHexAddress(req.Token)) {
		render.Error(w, http.StatusBadRequest, "invalid address")
		return
	}

	ctx := r.Context()
	userID := userFrom(ctx)

	wallet, err := s.wallets.LoadWallet(ctx, userID)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	var result *core.TransactionResult
	if req.Token == "" {
		result, err = wallet.SendNative(ctx, &core.NativeTx{
			Index: req.Index,
			To:    common.HexToAddress(req.To),
			Value: req.Value,
		})
	} else {
		result, err = wallet.TransferToken(ctx, &core.TokenTransfer{
			Index:     req.Index,
			Token:     common.HexToAddress(req.Token),
			Recipient: common.HexToAddress(req.To),
			Amount:    req.Value,
		})
	}

	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	view := transferView{TransactionResult: result}
	if req.Wait {
		view.Confirmation, err = wallet.WaitConfirmation(ctx, result.Hash)
		s.refreshAccounts(r, userID, req.Index)

		if err != nil {
			s.renderErr(w, r, err)
			return
		}
	}

	render.Data(w, http.StatusOK, view)
}

func (s *Server) refreshAccounts(r *http.Request, userID string, index uint32) {
	cache, err := s.caches.Cache(r.Context(), userID)
	if err != nil {
		s.logger.Warn("caches.Cache", "user", userID, "err", err)
		return
	}

	cache.Track(index)
	if err := cache.Refresh(r.Context()); err != nil {
		s.logger.Warn("cache.Refresh", "user", userID, "err", err)
	}
}

func (s *Server) payCheckout(w http.ResponseWriter, r *http.Request) {
	var req core.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	receipt, err := s.checkout.Pay(r.Context(), userFrom(r.Context()), &req)
	if err != nil {
		if errors.Is(err, core.ErrInvalidQRFormat) {
			render.Error(w, http.StatusBadRequest, "invalid QR code")
			return
		}

		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusOK, receipt)
}
