package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/migration"
	"github.com/smallbiznis/pioneer/internal/observability"
	"github.com/smallbiznis/pioneer/internal/server"
	"github.com/smallbiznis/pioneer/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Webhook and referrer API only; campaigns run in apps/scheduler.
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
