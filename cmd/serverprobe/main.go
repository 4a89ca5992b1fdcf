package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/probe"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/mcvotes/internal/config"
	"github.com/vncsmyrnk/mcvotes/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open("postgres", cfg.Postgres.ConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	probeSvc := services.NewProbeService(
		postgres.NewServerRepository(db),
		probe.NewMinecraftPinger(),
		services.NewSystemClock(),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	online, err := probeSvc.ProbeAll(ctx)
	if err != nil {
		log.Fatalf("Error probing servers: %v", err)
	}
	logger.Info("probe completed", "online", online)
}
