package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/dirhublabs/dirhub/internal/clock"
	"github.com/dirhublabs/dirhub/internal/config"
	"github.com/dirhublabs/dirhub/internal/migration"
	"github.com/dirhublabs/dirhub/internal/observability"
	"github.com/dirhublabs/dirhub/internal/server"
	"github.com/dirhublabs/dirhub/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP surface plus the billing domains it wires in
		server.Module,

		migration.Module,
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
