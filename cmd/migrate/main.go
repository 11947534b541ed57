// Command migrate applies or rolls back the embedded token-store migrations.
//
//	migrate up
//	migrate down
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cohortanalysis/golang_services/internal/platform/bootstrap"
	"github.com/cohortanalysis/golang_services/internal/platform/config"
	"github.com/cohortanalysis/golang_services/internal/platform/database"
	"github.com/cohortanalysis/golang_services/internal/platform/logger"
)

const serviceName = "migrate"

func main() {
	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)

	if err := run(context.Background(), cfg, direction); err != nil {
		appLogger.Error("Migration failed", "direction", direction, "error", err)
		os.Exit(1)
	}
	appLogger.Info("Migration finished", "direction", direction)
}

func run(ctx context.Context, cfg *config.Config, direction string) error {
	provider, err := bootstrap.SecretsProvider(ctx, cfg)
	if err != nil {
		return err
	}
	dsn, err := bootstrap.DatabaseDSN(ctx, cfg, provider)
	if err != nil {
		return err
	}
	switch direction {
	case "up":
		return database.RunMigrations(dsn)
	case "down":
		return database.RunMigrationsDown(dsn)
	}
	return fmt.Errorf("unknown direction %q, expected up or down", direction)
}
