package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/migration"
	"github.com/smallbiznis/pioneer/internal/observability"
	"github.com/smallbiznis/pioneer/internal/scheduler"
	"github.com/smallbiznis/pioneer/internal/server"
	"github.com/smallbiznis/pioneer/pkg/db"
	"go.uber.org/fx"
)

// Single binary: HTTP API, campaign scheduler and schema migrations.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		server.Module,
		scheduler.Module,
		fx.Invoke(scheduler.Run),
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
