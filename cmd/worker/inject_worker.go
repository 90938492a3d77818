package main

import (
	"time"

	"github.com/google/wire"
	"github.com/pandodao/beanpay/worker/auditor"
	"github.com/pandodao/beanpay/worker/expirer"
	"github.com/spf13/viper"
)

var workerSet = wire.NewSet(
	expirer.New,
	provideAuditorConfig,
	auditor.New,
)

func provideAuditorConfig(v *viper.Viper) auditor.Config {
	v.SetDefault("auditor.batch_size", 100)
	v.SetDefault("auditor.pause", 10*time.Minute)

	return auditor.Config{
		BatchSize: v.GetInt("auditor.batch_size"),
		Pause:     v.GetDuration("auditor.pause"),
	}
}
