package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pandodao/beanpay/core"
)

const (
	EventPaymentReceived = "payment_received"

	// SignatureHeader carries the hex HMAC-SHA256 of the request body.
	SignatureHeader = "X-Webhook-Signature"
)

// namespace of payment idempotency keys
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("beanpay:"+EventPaymentReceived))

type Config struct {
	Endpoint   string        `valid:"required,url"`
	Timeout    time.Duration `valid:"-"`
	RetryCount int           `valid:"-"`
	RetryWait  time.Duration `valid:"-"`
	// Secret signs every delivery when set.
	Secret string `valid:"-"`
}

type Event struct {
	Type string                    `json:"type"`
	Data *core.PaymentNotification `json:"data"`
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid Sign output for body.
func Verify(secret string, body []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// IdempotencyKey is stable for a session and tx hash pair.
func IdempotencyKey(sessionID, txHash string) string {
	return uuid.NewSHA1(namespace, []byte(sessionID+":"+txHash)).String()
}

func New(cfg Config, logger *slog.Logger) core.PaymentNotifier {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}

	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(4 * cfg.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &notifier{
		client:   client,
		endpoint: cfg.Endpoint,
		secret:   cfg.Secret,
		logger:   logger.With("service", "notifier"),
	}
}

type notifier struct {
	client   *resty.Client
	endpoint string
	secret   string
	logger   *slog.Logger
}

func (n *notifier) Notify(ctx context.Context, notification *core.PaymentNotification) error {
	key := IdempotencyKey(notification.SessionID, notification.TxHash)

	body, err := json.Marshal(&Event{Type: EventPaymentReceived, Data: notification})
	if err != nil {
		return err
	}

	req := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", key).
		SetBody(body)
	if n.secret != "" {
		req.SetHeader(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := req.Post(n.endpoint)
	if err != nil {
		n.logger.Error("webhook post", "session", notification.SessionID, "err", err)
		return fmt.Errorf("%w: %w", core.ErrWebhookDelivery, err)
	}

	if resp.IsError() {
		n.logger.Error("webhook rejected", "session", notification.SessionID, "status", resp.StatusCode(), "body", resp.String())
		return fmt.Errorf("%w: status %d", core.ErrWebhookDelivery, resp.StatusCode())
	}

	n.logger.Info("webhook delivered", "session", notification.SessionID, "tx", notification.TxHash, "attempts", resp.Request.Attempt)
	return nil
}
