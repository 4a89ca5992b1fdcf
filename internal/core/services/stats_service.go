package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const defaultLeaderboardLimit = 10

type statsService struct {
	servers ports.ServerRepository
	votes   ports.VoteRepository
	metrics ports.VoteMetrics
	clock   ports.Clock
	logger  *slog.Logger
}

func NewStatsService(servers ports.ServerRepository, votes ports.VoteRepository, metrics ports.VoteMetrics, clock ports.Clock, logger *slog.Logger) ports.StatsService {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &statsService{
		servers: servers,
		votes:   votes,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

func (s *statsService) TopVoters(ctx context.Context, serverID uuid.UUID, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > domain.MaxLeaderboardLimit {
		limit = domain.MaxLeaderboardLimit
	}
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return nil, err
	}

	entries, err := s.votes.TopVoters(ctx, serverID, period.Since(s.clock.Now()), limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Position = i + 1
	}
	return entries, nil
}

func (s *statsService) Recalculate(ctx context.Context, serverID uuid.UUID) error {
	if _, err := s.servers.GetByID(ctx, serverID); err != nil {
		return err
	}
	return recountServerVotes(ctx, s.servers, s.votes, serverID, s.clock.Now())
}

func (s *statsService) RecalculateAll(ctx context.Context) error {
	servers, err := s.servers.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch all servers: %w", err)
	}

	now := s.clock.Now()
	var wg sync.WaitGroup
	errChan := make(chan error, len(servers))

	for _, server := range servers {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			if err := recountServerVotes(ctx, s.servers, s.votes, id, now); err != nil {
				errChan <- fmt.Errorf("failed to recalculate server %s: %w", id, err)
			}
		}(server.ID)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	s.logger.Info("recalculated server vote counters", "servers", len(servers))
	return nil
}

func (s *statsService) MarkOffline(ctx context.Context, silence time.Duration) (int64, error) {
	count, err := s.servers.MarkOfflineBefore(ctx, s.clock.Now().Add(-silence))
	if err != nil {
		return 0, err
	}
	s.metrics.AddServersMarkedOffline(count)
	return count, nil
}

func (s *statsService) RecordHeartbeat(ctx context.Context, serverID uuid.UUID, hb domain.Heartbeat) error {
	return s.servers.RecordHeartbeat(ctx, serverID, hb, s.clock.Now())
}

func (s *statsService) Summary(ctx context.Context, serverID uuid.UUID) (*domain.ServerSummary, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := domain.StartOfDay(now)
	week := domain.StartOfWeek(now)

	votesToday, err := s.votes.Count(ctx, serverID, &today)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes today: %w", err)
	}
	votesWeek, err := s.votes.Count(ctx, serverID, &week)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes this week: %w", err)
	}
	pending, err := s.votes.CountUnclaimed(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending claims: %w", err)
	}

	return &domain.ServerSummary{
		ServerID:      server.ID,
		Name:          server.Name,
		Slug:          server.Slug,
		IsOnline:      server.IsOnline,
		VotesToday:    votesToday,
		VotesWeek:     votesWeek,
		VotesMonth:    server.MonthlyVotes,
		VotesTotal:    server.TotalVotes,
		PendingClaims: pending,
	}, nil
}
