package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/gorilla/websocket"
	"github.com/pandodao/beanpay/core"
)

type Config struct {
	// URL is the supabase project url, http(s) or ws(s).
	URL       string        `valid:"required"`
	APIKey    string        `valid:"required"`
	Heartbeat time.Duration `valid:"-"`
}

// Feed subscribes to payment_sessions row changes through supabase realtime.
type Feed struct {
	endpoint  string
	heartbeat time.Duration
	logger    *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Feed {
	if _, err := govalidator.ValidateStruct(cfg); err != nil {
		panic(err)
	}

	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}

	return &Feed{
		endpoint:  websocketURL(cfg.URL, cfg.APIKey),
		heartbeat: cfg.Heartbeat,
		logger:    logger.With("service", "realtime"),
	}
}

func websocketURL(base, apiKey string) string {
	switch {
	case strings.HasPrefix(base, "https"):
		base = "wss" + strings.TrimPrefix(base, "https")
	case strings.HasPrefix(base, "http"):
		base = "ws" + strings.TrimPrefix(base, "http")
	}

	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	return strings.TrimSuffix(base, "/") + "/realtime/v1/websocket?" + q.Encode()
}

// Topic is the channel of a single session row.
func Topic(sessionID string) string {
	return "realtime:public:payment_sessions:session_id=eq." + sessionID
}

type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
	JoinRef string          `json:"join_ref,omitempty"`
}

type record struct {
	SessionID     string             `json:"session_id"`
	Status        core.SessionStatus `json:"status"`
	PaymentTxHash string             `json:"payment_tx_hash"`
	BuyerAddress  string             `json:"buyer_address"`
	PaymentMethod core.PaymentMethod `json:"payment_method"`
}

type changePayload struct {
	Type   string  `json:"type"`
	Record *record `json:"record"`
	Data   *struct {
		Type   string  `json:"type"`
		Record *record `json:"record"`
	} `json:"data"`
}

// decodeChange extracts the changed row, accepting both the legacy and the
// postgres_changes payload layouts.
func decodeChange(raw json.RawMessage) (*record, bool) {
	var p changePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}

	r := p.Record
	if r == nil && p.Data != nil {
		r = p.Data.Record
	}

	if r == nil || r.SessionID == "" || r.Status == "" {
		return nil, false
	}

	return r, true
}

type subscription struct {
	conn   *websocket.Conn
	topic  string
	wmux   sync.Mutex
	ref    int
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func (s *subscription) send(event string, topic string) error {
	s.wmux.Lock()
	defer s.wmux.Unlock()

	s.ref++
	ref := strconv.Itoa(s.ref)
	return s.conn.WriteJSON(message{
		Topic:   topic,
		Event:   event,
		Payload: json.RawMessage(`{}`),
		Ref:     ref,
		JoinRef: ref,
	})
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.send("phx_leave", s.topic)

		s.wmux.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.wmux.Unlock()

		s.conn.Close()
	})
}

func (f *Feed) Subscribe(ctx context.Context, sessionID string, fn func(session *core.PaymentSession)) (func(), error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: websocket dial: %w", core.ErrNetwork, err)
	}

	sub := &subscription{
		conn:   conn,
		topic:  Topic(sessionID),
		done:   make(chan struct{}),
		logger: f.logger.With("session", sessionID),
	}

	if err := sub.send("phx_join", sub.topic); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: send join: %w", core.ErrNetwork, err)
	}

	go sub.heartbeat(f.heartbeat)
	go sub.read(fn)
	go func() {
		select {
		case <-ctx.Done():
			sub.close()
		case <-sub.done:
		}
	}()

	return sub.close, nil
}

func (s *subscription) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.send("heartbeat", "phoenix"); err != nil {
				s.logger.Debug("heartbeat", "err", err)
				return
			}
		}
	}
}

func (s *subscription) read(fn func(session *core.PaymentSession)) {
	for {
		var msg message
		if err := s.conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Info("realtime connection closed", "err", err)
			}
			return
		}

		if msg.Topic != s.topic {
			continue
		}

		switch msg.Event {
		case "phx_reply", "phx_close", "presence_state", "system":
			continue
		}

		r, ok := decodeChange(msg.Payload)
		if !ok {
			continue
		}

		select {
		case <-s.done:
			return
		default:
		}

		fn(&core.PaymentSession{
			SessionID:     r.SessionID,
			Status:        r.Status,
			PaymentTxHash: r.PaymentTxHash,
			BuyerAddress:  r.BuyerAddress,
			PaymentMethod: r.PaymentMethod,
		})
	}
}
