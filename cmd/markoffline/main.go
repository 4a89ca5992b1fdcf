package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/mcvotes/internal/config"
	"github.com/vncsmyrnk/mcvotes/internal/core/services"
	"github.com/vncsmyrnk/mcvotes/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	minutes := flag.Int("minutes", int(cfg.OfflineAfter/time.Minute), "Minutes without a heartbeat before a server is offline")
	flag.Parse()
	if *minutes < 1 {
		log.Fatal("--minutes must be at least 1")
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
	statsSvc := services.NewStatsService(
		postgres.NewServerRepository(db),
		postgres.NewVoteRepository(db),
		metrics.NewMetricService(),
		services.NewSystemClock(),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := statsSvc.MarkOffline(ctx, time.Duration(*minutes)*time.Minute)
	if err != nil {
		log.Fatalf("Error marking servers offline: %v", err)
	}
	logger.Info("marked servers offline", "count", count, "minutes", *minutes)
}
