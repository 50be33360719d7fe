package main

// @title AssetDesk API
// @version 1.0
// @description Multi-tenant IT asset and ticket tracking with subscription plans.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"log"

	"github.com/alecthomas/kong"
	"github.com/jordanlanch/assetdesk/config"
	"github.com/jordanlanch/assetdesk/pkg/secrets"
)

var (
	version = "dev"
	cli     struct {
		Serve   ServeCmd   `cmd:"" default:"1" help:"Run the HTTP API (default)"`
		Migrate MigrateCmd `cmd:"" help:"Create or upgrade the database schema and exit"`
		Seed    SeedCmd    `cmd:"" help:"Load sample organizations, assets and tickets"`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	applied, err := secrets.Load(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to load secrets from %s: %v", cfg.SecretsBackend, err)
	}
	if len(applied) > 0 {
		log.Printf("🔐 Secrets loaded from %s: %v", cfg.SecretsBackend, applied)
	}
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	cmd := kong.Parse(&cli,
		kong.Name("assetdesk"),
		kong.Description("AssetDesk API server"),
		kong.Vars{
			"version": version,
		},
		kong.Bind(cfg),
		kong.BindTo(ctx, (*context.Context)(nil)))
	cmd.FatalIfErrorf(cmd.Run())
}
