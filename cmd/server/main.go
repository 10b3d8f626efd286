package main

import (
	"context"
	"log"

	"github.com/dmbp/licitaflix/internal/api"
	"github.com/dmbp/licitaflix/internal/config"
	"github.com/dmbp/licitaflix/internal/db"
	"github.com/dmbp/licitaflix/internal/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogJSON, cfg.LogDebug)
	if err != nil {
		log.Fatalf("creating a logger: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		zlog.Fatal("migration failed", zap.Error(err))
	}

	srv, err := api.NewServer(pool, zlog)
	if err != nil {
		zlog.Fatal("building server", zap.Error(err))
	}

	zlog.Info("server starting", zap.String("port", cfg.ServerPort))
	if err := srv.Start(":" + cfg.ServerPort); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}
