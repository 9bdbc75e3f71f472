package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/storynest/storynest/internal/clock"
	"github.com/storynest/storynest/internal/config"
	"github.com/storynest/storynest/internal/migration"
	"github.com/storynest/storynest/internal/observability"
	"github.com/storynest/storynest/internal/server"
	"github.com/storynest/storynest/pkg/db"
)

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
