package main

import (
	"context"
	"os"

	"github.com/polygonid/attestation-bridge/internal/config"
	"github.com/polygonid/attestation-bridge/internal/db/schema"
	"github.com/polygonid/attestation-bridge/internal/log"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx, ".env")
	if err != nil {
		log.Error(ctx, "cannot load config", "err", err)
		os.Exit(1)
	}

	ctx = log.NewContext(ctx, cfg.Log.Level, cfg.Log.Mode, os.Stdout)
	if cfg.Database.URL == "" {
		log.Error(ctx, "DATABASE_URL is required")
		os.Exit(1)
	}

	if err := schema.Migrate(ctx, cfg.Database.URL); err != nil {
		log.Error(ctx, "error migrating database", "err", err)
		os.Exit(1)
	}

	log.Info(ctx, "migration done!")
}
