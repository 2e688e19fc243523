package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/config"
	"github.com/makestack-ai/makestack/internal/logger"
	"github.com/makestack-ai/makestack/internal/metrics"
	"github.com/makestack-ai/makestack/internal/scheduler"
	"github.com/makestack-ai/makestack/internal/uptime"
	"github.com/makestack-ai/makestack/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		uptime.Module,
		scheduler.Module,
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
