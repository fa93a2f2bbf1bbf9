package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	"github.com/smallbiznis/vaultline/internal/migration"
	"github.com/smallbiznis/vaultline/internal/observability"
	"github.com/smallbiznis/vaultline/internal/server"
	"github.com/smallbiznis/vaultline/pkg/db"
	"go.uber.org/fx"
)

// The API process serves HTTP only; period opening runs in apps/scheduler.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

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
