package main

import (
	"github.com/google/wire"
	"github.com/pandodao/beanpay/core"
	"github.com/pandodao/beanpay/service/feed"
	"github.com/pandodao/beanpay/service/session"
)

var serviceSet = wire.NewSet(
	feed.New,
	wire.Bind(new(core.SessionPublisher), new(*feed.Hub)),
	session.New,
)
