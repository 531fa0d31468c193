package main

import (
	"context"
	"flag"
	"time"

	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	pg "github.com/NordCoder/Gatekeeper/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/auth-server.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = obs.Component(logger, "migrator")

	if cfg.Storage.Driver != config.DriverPostgres {
		logger.Info("nothing to migrate", zap.String("driver", cfg.Storage.Driver))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := pg.Migrate(ctx, cfg.DB.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("migrations: up OK")
}
