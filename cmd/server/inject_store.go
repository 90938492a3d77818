package main

import (
	"github.com/google/wire"
	"github.com/pandodao/beanpay/store/db"
	sessionstore "github.com/pandodao/beanpay/store/session"
	"github.com/pandodao/beanpay/store/wallet"
	"github.com/spf13/viper"
	"github.com/tsenart/nap"
)

var storeSet = wire.NewSet(
	provideDB,
	provideWalletStoreConfig,
	wallet.New,
	sessionstore.New,
)

func provideDB(v *viper.Viper) (*nap.DB, func(), error) {
	v.SetDefault("db.driver", "postgres")

	driver := v.GetString("db.driver")
	dsn := v.GetString("db.dsn")

	for _, replica := range v.GetStringSlice("db.replicas") {
		dsn += ";" + replica
	}

	conn, err := nap.Open(driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(conn.Master()); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	return conn, func() { _ = conn.Close() }, nil
}

func provideWalletStoreConfig(v *viper.Viper) wallet.Config {
	return wallet.Config{
		SecretKey: v.GetString("wallet.secret_key"),
	}
}
