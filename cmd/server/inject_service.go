package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/wire"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/accounts"
	"github.com/pandodao/beanpay/service/catalog"
	"github.com/pandodao/beanpay/service/checkout"
	"github.com/pandodao/beanpay/service/contract"
	"github.com/pandodao/beanpay/service/feed"
	"github.com/pandodao/beanpay/service/loader"
	"github.com/pandodao/beanpay/service/notifier"
	"github.com/pandodao/beanpay/service/realtime"
	"github.com/pandodao/beanpay/service/session"
	"github.com/pandodao/beanpay/service/vault"
	"github.com/pandodao/beanpay/service/wallet"
	"github.com/spf13/viper"
)

var serviceSet = wire.NewSet(
	provideBackend,
	wire.Bind(new(core.ChainBackend), new(*ethclient.Client)),
	provideContractConfig,
	contract.New,
	provideWalletConfig,
	loader.New,
	vault.New,
	feed.New,
	wire.Bind(new(core.SessionPublisher), new(*feed.Hub)),
	provideSessionFeed,
	session.New,
	provideNotifierConfig,
	notifier.New,
	provideCheckoutConfig,
	checkout.New,
	provideTokens,
	accounts.NewPool,
	catalog.New,
)

func provideBackend(ctx context.Context, v *viper.Viper) (*ethclient.Client, func(), error) {
	v.SetDefault("chain.rpc", "https://api.avax.network/ext/bc/C/rpc")

	client, err := ethclient.DialContext(ctx, v.GetString("chain.rpc"))
	if err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

func provideContractConfig(v *viper.Viper) contract.Config {
	return contract.Config{
		Store: v.GetString("chain.store_contract"),
	}
}

func provideWalletConfig(v *viper.Viper) wallet.Config {
	v.SetDefault("wallet.confirm_timeout", 30*time.Second)
	v.SetDefault("wallet.poll_interval", time.Second)

	return wallet.Config{
		ConfirmTimeout: v.GetDuration("wallet.confirm_timeout"),
		PollInterval:   v.GetDuration("wallet.poll_interval"),
	}
}

// provideSessionFeed prefers supabase realtime when configured. Without it
// the in-process hub only sees changes made by this server.
func provideSessionFeed(v *viper.Viper, hub *feed.Hub, logger *slog.Logger) core.SessionFeed {
	if url := v.GetString("realtime.url"); url != "" {
		return realtime.New(realtime.Config{
			URL:       url,
			APIKey:    v.GetString("realtime.api_key"),
			Heartbeat: v.GetDuration("realtime.heartbeat"),
		}, logger)
	}

	return hub
}

func provideNotifierConfig(v *viper.Viper) notifier.Config {
	v.SetDefault("notifier.timeout", 10*time.Second)
	v.SetDefault("notifier.retry_count", 3)
	v.SetDefault("notifier.retry_wait", 500*time.Millisecond)

	return notifier.Config{
		Endpoint:   v.GetString("notifier.endpoint"),
		Timeout:    v.GetDuration("notifier.timeout"),
		RetryCount: v.GetInt("notifier.retry_count"),
		RetryWait:  v.GetDuration("notifier.retry_wait"),
		Secret:     v.GetString("notifier.secret"),
	}
}

func provideCheckoutConfig(v *viper.Viper) checkout.Config {
	return checkout.Config{
		Store: v.GetString("chain.store_contract"),
		USDC:  v.GetString("chain.usdc"),
		USDT:  v.GetString("chain.usdt"),
	}
}

func provideTokens(cfg checkout.Config) []common.Address {
	return []common.Address{
		common.HexToAddress(cfg.USDC),
		common.HexToAddress(cfg.USDT),
	}
}
