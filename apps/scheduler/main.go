package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pioneer/internal/clock"
	"github.com/smallbiznis/pioneer/internal/config"
	"github.com/smallbiznis/pioneer/internal/invitation"
	"github.com/smallbiznis/pioneer/internal/notification"
	"github.com/smallbiznis/pioneer/internal/observability"
	"github.com/smallbiznis/pioneer/internal/providers/email"
	"github.com/smallbiznis/pioneer/internal/ratelimit"
	"github.com/smallbiznis/pioneer/internal/referral"
	"github.com/smallbiznis/pioneer/internal/scheduler"
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

		// Domain services required by scheduler
		scheduler.Module,
		invitation.Module,
		notification.Module,
		email.Module,
		referral.Module,
		ratelimit.Module,

		// No server module!
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
