package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/makestack-ai/makestack/internal/clock"
	"github.com/makestack-ai/makestack/internal/config"
	"github.com/makestack-ai/makestack/internal/logger"
	"github.com/makestack-ai/makestack/internal/metrics"
	"github.com/makestack-ai/makestack/internal/migration"
	"github.com/makestack-ai/makestack/internal/server"
	"github.com/makestack-ai/makestack/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		metrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// API surface (credit ledger, uptime tracker, rate limiting)
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
