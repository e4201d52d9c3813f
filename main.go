// @title CourseCraft API
// @version 1.0
// @description Course progression, quiz grading and certificate issuance.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"flag"
	"log"

	"coursecraft_backend/internal/app"
	"coursecraft_backend/internal/config"
	"coursecraft_backend/pkg/configwatcher"
	"coursecraft_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "directory holding config.yaml")
	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "run database migrations on start, even in release mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *migrateOnly {
		logger.Log.Info("migration finished, exiting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := configwatcher.Watch(ctx, *configDir, application.ApplyConfig); err != nil {
			logger.Log.Warn("config hot reload disabled", zap.Error(err))
		}
	}()

	application.Run()
}
