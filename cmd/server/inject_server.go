package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/wire"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/handler/api"
	"github.com/pandodao/beanpay/handler/hc"
	"github.com/pandodao/beanpay/worker/syncer"
	"github.com/rs/cors"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var serverSet = wire.NewSet(
	provideAPIConfig,
	api.New,
	provideHealthChecks,
	provideServer,
	wire.Bind(new(syncer.Catalog), new(core.CatalogService)),
	syncer.New,
)

func provideAPIConfig(v *viper.Viper) api.Config {
	v.SetDefault("api.watch_interval", 2*time.Second)

	return api.Config{
		WatchInterval: v.GetDuration("api.watch_interval"),
		WebhookSecret: v.GetString("api.webhook_secret"),
	}
}

func provideHealthChecks(db *nap.DB, client *ethclient.Client) map[string]hc.Check {
	return map[string]hc.Check{
		"db": db.PingContext,
		"chain": func(ctx context.Context) error {
			_, err := client.ChainID(ctx)
			return err
		},
	}
}

func provideServer(apiHandler *api.Server, checks map[string]hc.Check) *http.Server {
	m := chi.NewMux()
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Recoverer)
	m.Use(cors.AllowAll().Handler)

	m.Mount("/api", apiHandler.Handler())
	m.Mount("/hc", hc.Handler(version, checks))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", opt.port),
		Handler: m,
	}
}
