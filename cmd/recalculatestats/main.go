package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
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

	var serverFlag string
	flag.StringVar(&cfg.Postgres.Host, "db-host", cfg.Postgres.Host, "Database host")
	flag.StringVar(&cfg.Postgres.Port, "db-port", cfg.Postgres.Port, "Database port")
	flag.StringVar(&cfg.Postgres.User, "db-user", cfg.Postgres.User, "Database user")
	flag.StringVar(&cfg.Postgres.Password, "db-pass", cfg.Postgres.Password, "Database password")
	flag.StringVar(&cfg.Postgres.DB, "db-name", cfg.Postgres.DB, "Database name")
	flag.StringVar(&serverFlag, "server", "", "Recalculate a single server by id")
	flag.Parse()

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

	// Use a timeout for the job execution to prevent it from hanging indefinitely
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if serverFlag != "" {
		serverID, err := uuid.Parse(serverFlag)
		if err != nil {
			log.Fatalf("invalid server id %q: %v", serverFlag, err)
		}

		logger.Info("recalculating vote counters", "server_id", serverID)
		if err := statsSvc.Recalculate(ctx, serverID); err != nil {
			log.Fatalf("Error recalculating server %s: %v", serverID, err)
		}
		logger.Info("recalculation completed")
		return
	}

	logger.Info("recalculating vote counters for all servers")
	if err := statsSvc.RecalculateAll(ctx); err != nil {
		log.Fatalf("Error recalculating servers: %v", err)
	}
	logger.Info("recalculation completed")
}
