package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/handler/render"
	"github.com/pandodao/beanpay/service/accounts"
	"github.com/pandodao/beanpay/store"
	"golang.org/x/sync/singleflight"
)

type Config struct {
	WatchInterval time.Duration
	// WebhookSecret makes the payment webhook require a valid signature.
	WebhookSecret string
}

func New(
	sessions core.SessionService,
	feed core.SessionFeed,
	vault core.VaultService,
	wallets core.WalletLoader,
	caches *accounts.Pool,
	checkout core.CheckoutService,
	catalog core.CatalogService,
	logger *slog.Logger,
	cfg Config,
) *Server {
	return &Server{
		sessions: sessions,
		feed:     feed,
		vault:    vault,
		wallets:  wallets,
		caches:   caches,
		checkout: checkout,
		catalog:  catalog,
		logger:   logger.With("server", "api"),
		cfg:      cfg,
		sf:       &singleflight.Group{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type Server struct {
	sessions core.SessionService
	feed     core.SessionFeed
	vault    core.VaultService
	wallets  core.WalletLoader
	caches   *accounts.Pool
	checkout core.CheckoutService
	catalog  core.CatalogService
	logger   *slog.Logger
	cfg      Config
	sf       *singleflight.Group
	upgrader websocket.Upgrader
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/{id}", s.findSession)
		r.Get("/{id}/qr", s.sessionQR)
		r.Get("/{id}/qr.png", s.sessionQRImage)
		r.Get("/{id}/watch", s.watchSession)
	})

	r.Post("/webhooks/payment", s.paymentWebhook)
	r.Get("/products", s.listProducts)

	r.Route("/wallet", func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/", s.createWallet)
		r.Get("/accounts", s.listAccounts)
		r.Post("/transfers", s.createTransfer)
		r.Post("/checkout", s.payCheckout)
	})

	return r
}

type userKey struct{}

// requireUser trusts the identity proxy in front of the server.
func requireUser(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			render.Error(w, http.StatusUnauthorized, "missing user")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

func userFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}

func statusOf(err error) int {
	switch {
	case store.IsErrNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientBalance), errors.Is(err, core.ErrTransactionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, core.ErrSessionNotPending), errors.Is(err, core.ErrSessionNotExpired):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidQRFormat),
		errors.Is(err, core.ErrUnsupportedMethod),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, core.ErrInvalidSecret):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) renderErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		render.Error(w, status, "internal error")
		return
	}

	render.Error(w, status, err.Error())
}
