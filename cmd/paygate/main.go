package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/migration"
	"github.com/smallbiznis/paygate/internal/observability"
	"github.com/smallbiznis/paygate/internal/order"
	"github.com/smallbiznis/paygate/internal/providers/cart"
	"github.com/smallbiznis/paygate/internal/providers/email"
	"github.com/smallbiznis/paygate/internal/ratelimit"
	"github.com/smallbiznis/paygate/internal/reconcile"
	"github.com/smallbiznis/paygate/internal/server"
	"github.com/smallbiznis/paygate/internal/smartpay"
	"github.com/smallbiznis/paygate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		order.Module,
		smartpay.Module,
		email.Module,
		cart.Module,
		ratelimit.Module,
		reconcile.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
