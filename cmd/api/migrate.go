package main

import (
	"context"
	"log"

	"github.com/jordanlanch/assetdesk/config"
	"github.com/jordanlanch/assetdesk/pkg/container"
	"github.com/jordanlanch/assetdesk/pkg/logger"
)

// MigrateCmd creates or upgrades the schema
type MigrateCmd struct{}

// Run opens the database, which applies the migration, and exits
func (m *MigrateCmd) Run(ctx context.Context, cfg *config.Config) error {
	cfg.RedisURL = ""

	deps, err := container.Open(ctx, cfg, logger.New(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		return err
	}
	defer deps.DB.Close()

	log.Printf("✅ Database schema is up to date (%s)", cfg.DatabaseDriver)
	return nil
}
