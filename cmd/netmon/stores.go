package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hamed0406/netmon/internal/app"
	"github.com/hamed0406/netmon/internal/config"
	"github.com/hamed0406/netmon/internal/repo"
	"github.com/hamed0406/netmon/internal/repo/memory"
	"github.com/hamed0406/netmon/internal/repo/postgres"
	"github.com/hamed0406/netmon/internal/repo/sqlite"
)

// loadMonitor reads the configuration file and builds the probes.
func loadMonitor(cfg *config.Config) (*app.Context, error) {
	f, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	return app.Build(f, *cfg)
}

// openStore picks Postgres, then SQLite, then memory.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		s, err := postgres.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		log.Info("store_selected", zap.String("kind", "postgres"))
		return s, nil
	case cfg.SQLitePath != "":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, nil
	default:
		log.Info("store_selected", zap.String("kind", "memory"))
		return memory.New(memory.DefaultLimit), nil
	}
}
