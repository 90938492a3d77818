package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/handler/render"
	"github.com/pandodao/beanpay/service/notifier"
)

// paymentWebhook settles a session from a payment_received notification.
// Redelivery of an already recorded payment is acknowledged again.
func (s *Server) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	if secret := s.cfg.WebhookSecret; secret != "" && !notifier.Verify(secret, body, r.Header.Get(notifier.SignatureHeader)) {
		s.logger.Warn("payment webhook signature mismatch", "remote", r.RemoteAddr)
		render.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event notifier.Event
	if err := json.Unmarshal(body, &event); err != nil || event.Data == nil {
		render.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	if event.Type != notifier.EventPaymentReceived {
		render.Error(w, http.StatusBadRequest, "unsupported event type")
		return
	}

	data := event.Data
	if data.SessionID == "" || data.TxHash == "" {
		render.Error(w, http.StatusBadRequest, "sessionId and txHash are required")
		return
	}

	now := time.Now()
	settlement := &core.Settlement{
		TxHash:       data.TxHash,
		BuyerAddress: data.BuyerAddress,
		Method:       data.PaymentMethod,
		NotifiedAt:   &now,
	}

	if data.Amount != nil {
		settlement.Amount = *data.Amount
	}

	logger := s.logger.With("session", data.SessionID, "tx", data.TxHash, "idempotency_key", r.Header.Get("Idempotency-Key"))

	session, err := s.sessions.MarkPaid(r.Context(), data.SessionID, settlement)
	if errors.Is(err, core.ErrSessionNotPending) && session != nil &&
		session.Status == core.SessionStatusPaid && strings.EqualFold(session.PaymentTxHash, data.TxHash) {
		logger.Info("duplicate payment notification")
		render.Data(w, http.StatusOK, session)
		return
	}

	if err != nil {
		logger.Warn("sessions.MarkPaid", "err", err)
		s.renderErr(w, r, err)
		return
	}

	render.Data(w, http.StatusOK, session)
}
