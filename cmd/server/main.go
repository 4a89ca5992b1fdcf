package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/handler/http"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/probe"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/realtime"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/mcvotes/internal/adapters/webhook"
	"github.com/vncsmyrnk/mcvotes/internal/config"
	"github.com/vncsmyrnk/mcvotes/internal/core/services"
	"github.com/vncsmyrnk/mcvotes/internal/jobs"
	"github.com/vncsmyrnk/mcvotes/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	db, err := sql.Open("postgres", cfg.Postgres.ConnString())
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Repositories
	serverRepo := postgres.NewServerRepository(db)
	voteRepo := postgres.NewVoteRepository(db)
	tokenRepo := postgres.NewServerTokenRepository(db)
	uow := postgres.NewUnitOfWork(db)

	// Initialize Notifications
	metricService := metrics.NewMetricService()
	hub := realtime.NewHub(cfg.AllowedOrigins, metricService, logger)
	dispatcher := webhook.NewDispatcher(webhook.Options{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
		Attempts:  cfg.Webhook.Attempts,
		Backoff:   cfg.Webhook.Backoff,
		Timeout:   cfg.Webhook.Timeout,
	}, metricService, logger)
	dispatcher.Start(ctx)

	// Initialize Services
	clock := services.NewSystemClock()
	voteSvc := services.NewVoteService(services.VoteServiceDeps{
		UnitOfWork: uow,
		Servers:    serverRepo,
		Votes:      voteRepo,
		Notifier:   hub,
		Webhooks:   dispatcher,
		Metrics:    metricService,
		Clock:      clock,
		Random:     services.NewRandomSource(),
		Logger:     logger,
	})
	statsSvc := services.NewStatsService(serverRepo, voteRepo, metricService, clock, logger)
	agentAuth := services.NewAgentAuthService(tokenRepo, serverRepo, clock, logger)
	probeSvc := services.NewProbeService(serverRepo, probe.NewMinecraftPinger(), clock, logger)

	if cfg.SchedulerEnabled {
		scheduler := jobs.NewScheduler(statsSvc, probeSvc, clock, jobs.Options{
			OfflineAfter:  cfg.OfflineAfter,
			ProbeInterval: cfg.ProbeInterval,
		}, logger)
		go scheduler.Run(ctx)
	}

	router := http.NewHandler(
		http.NewVoteHandler(voteSvc),
		http.NewStatsHandler(statsSvc),
		http.NewAgentHandler(voteSvc, statsSvc),
		http.RouterConfig{
			JWTSecret:      cfg.JWTSecret,
			AllowedOrigins: cfg.AllowedOrigins,
			Agents:         agentAuth,
			Realtime:       hub.ServeWS,
			Metrics:        metricService.Handler(),
		},
	)
	server := &stdhttp.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
	dispatcher.Stop(shutdownCtx)
}
