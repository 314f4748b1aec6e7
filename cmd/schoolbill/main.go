package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolbill/internal/clock"
	"github.com/smallbiznis/schoolbill/internal/config"
	"github.com/smallbiznis/schoolbill/internal/documentcounter"
	"github.com/smallbiznis/schoolbill/internal/invoice"
	"github.com/smallbiznis/schoolbill/internal/ledger"
	"github.com/smallbiznis/schoolbill/internal/migration"
	"github.com/smallbiznis/schoolbill/internal/observability"
	"github.com/smallbiznis/schoolbill/internal/ratelimit"
	"github.com/smallbiznis/schoolbill/internal/receipt"
	"github.com/smallbiznis/schoolbill/internal/server"
	"github.com/smallbiznis/schoolbill/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional Domains
		documentcounter.Module,
		ledger.Module,
		receipt.Module,
		invoice.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
