package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/handler/render"
	"github.com/pandodao/beanpay/service/watcher"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

type createSessionRequest struct {
	SellerWalletAddress string          `json:"seller_wallet_address"`
	ProductID           *uint64         `json:"product_id,omitempty"`
	ProductName         string          `json:"product_name,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
}

type sessionView struct {
	Session     *core.PaymentSession `json:"session"`
	QR          *core.QRPayload      `json:"qr"`
	RemainingMS int64                `json:"remaining_ms"`
}

func viewSession(session *core.PaymentSession) *sessionView {
	qr := core.NewQRPayload(session)
	return &sessionView{
		Session:     session,
		QR:          qr,
		RemainingMS: qr.Remaining(time.Now()).Milliseconds(),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	ctx := r.Context()

	if req.SellerWalletAddress == "" {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			render.Error(w, http.StatusBadRequest, "seller_wallet_address is required")
			return
		}

		wallet, err := s.wallets.LoadWallet(ctx, userID)
		if err != nil {
			s.renderErr(w, r, err)
			return
		}

		primary, err := wallet.Address(0)
		if err != nil {
			s.renderErr(w, r, err)
			return
		}

		req.SellerWalletAddress = primary.Hex()
	}

	// price and name default to the catalog entry
	if req.ProductID != nil && (req.Amount.IsZero() || req.ProductName == "") {
		product, err := s.catalog.Find(ctx, *req.ProductID)
		if err != nil {
			s.renderErr(w, r, err)
			return
		}

		if req.Amount.IsZero() {
			req.Amount = product.Price
		}

		if req.ProductName == "" {
			req.ProductName = product.Name
		}
	}

	session, err := s.sessions.Create(ctx, &core.SessionInput{
		SellerWalletAddress: req.SellerWalletAddress,
		ProductID:           req.ProductID,
		ProductName:         req.ProductName,
		Amount:              req.Amount,
	})
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusCreated, viewSession(session))
}

func (s *Server) findSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Sync(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusOK, viewSession(session))
}

func (s *Server) sessionQR(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusOK, core.NewQRPayload(session))
}

func (s *Server) sessionQRImage(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	png, err := qrcode.Encode(core.NewQRPayload(session).Encode(), qrcode.Medium, 256)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

type watchMessage struct {
	Type    string               `json:"type"`
	Session *core.PaymentSession `json:"session,omitempty"`
	Outcome *watcher.Outcome     `json:"outcome,omitempty"`
}

// watchSession streams the session until it is paid or expired.
func (s *Server) watchSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.sessions.Sync(r.Context(), id)
	if err != nil {
		s.renderErr(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrader.Upgrade", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// the client never sends data; a read error means it went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(watchMessage{Type: "session", Session: session}); err != nil {
		return
	}

	outcome := watcher.Outcome{Status: session.Status, Source: watcher.SourcePoll}
	if !session.Status.Terminal() {
		wt := watcher.New(s.feed, s.sessions, s.logger, watcher.Config{Interval: s.cfg.WatchInterval})
		if err := wt.Observe(ctx, id); err != nil {
			s.logger.Error("watcher.Observe", "session", id, "err", err)
			return
		}
		defer wt.Cancel()

		if outcome, err = wt.Wait(ctx); err != nil {
			return
		}

		if session, err = s.sessions.Find(ctx, id); err != nil {
			s.logger.Error("sessions.Find", "session", id, "err", err)
			return
		}
	}

	_ = conn.WriteJSON(watchMessage{Type: "outcome", Session: session, Outcome: &outcome})
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(outcome.Status)),
		time.Now().Add(time.Second),
	)
}
