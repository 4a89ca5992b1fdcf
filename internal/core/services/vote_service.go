package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type VoteServiceDeps struct {
	UnitOfWork ports.UnitOfWork
	Servers    ports.ServerRepository
	Votes      ports.VoteRepository
	Notifier   ports.VoteNotifier
	Webhooks   ports.WebhookNotifier
	Metrics    ports.VoteMetrics
	Clock      ports.Clock
	Random     ports.RandomSource
	Logger     *slog.Logger
}

type voteService struct {
	uow      ports.UnitOfWork
	servers  ports.ServerRepository
	votes    ports.VoteRepository
	notifier ports.VoteNotifier
	webhooks ports.WebhookNotifier
	metrics  ports.VoteMetrics
	clock    ports.Clock
	random   ports.RandomSource
	logger   *slog.Logger
}

func NewVoteService(deps VoteServiceDeps) ports.VoteService {
	if deps.Clock == nil {
		deps.Clock = NewSystemClock()
	}
	if deps.Random == nil {
		deps.Random = NewRandomSource()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &voteService{
		uow:      deps.UnitOfWork,
		servers:  deps.Servers,
		votes:    deps.Votes,
		notifier: deps.Notifier,
		webhooks: deps.Webhooks,
		metrics:  deps.Metrics,
		clock:    deps.Clock,
		random:   deps.Random,
		logger:   deps.Logger,
	}
}

func (s *voteService) Cast(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	if err := domain.ValidateMinecraftUsername(input.MinecraftUsername); err != nil {
		s.metrics.IncVoteRejected("invalid_username")
		return nil, err
	}

	var vote *domain.Vote
	var server *domain.Server
	keys := voteLockKeys(input.ServerID, input.Voter.ID, input.MinecraftUsername)
	err := s.uow.Do(ctx, keys, func(ctx context.Context, repos ports.Repositories) error {
		srv, err := repos.Servers.GetByID(ctx, input.ServerID)
		if err != nil {
			return err
		}
		if !srv.CanReceiveVotes() {
			return domain.ErrServerNotEligible
		}

		allowed, err := NewEligibilityGate(repos.Votes, s.clock).CanVote(ctx, srv, input.Voter)
		if err != nil {
			return err
		}
		if !allowed {
			return domain.ErrCooldownActive
		}

		vote, server, err = s.record(ctx, repos, srv, input.Voter, input.MinecraftUsername, input.MinecraftUUID, input.Metadata)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCooldownActive):
			s.metrics.IncVoteRejected("cooldown")
		case errors.Is(err, domain.ErrServerNotEligible):
			s.metrics.IncVoteRejected("not_eligible")
		}
		return nil, err
	}

	s.afterCommit(ctx, vote, server)
	return vote, nil
}

func (s *voteService) CreateVote(ctx context.Context, server *domain.Server, voter domain.User, username string, minecraftUUID *uuid.UUID, meta domain.RequestMetadata) (*domain.Vote, error) {
	var vote *domain.Vote
	var updated *domain.Server
	keys := voteLockKeys(server.ID, voter.ID, username)
	err := s.uow.Do(ctx, keys, func(ctx context.Context, repos ports.Repositories) error {
		var err error
		vote, updated, err = s.record(ctx, repos, server, voter, username, minecraftUUID, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, vote, updated)
	return vote, nil
}

// record resolves rewards and streak against the history that excludes the
// new vote, stores it and recounts the server counters. All reads and writes
// go through the transaction bound repos.
func (s *voteService) record(ctx context.Context, repos ports.Repositories, server *domain.Server, voter domain.User, username string, minecraftUUID *uuid.UUID, meta domain.RequestMetadata) (*domain.Vote, *domain.Server, error) {
	started := time.Now()

	earned, err := NewRewardResolver(repos.Rewards, repos.Votes, s.clock, s.random).Resolve(ctx, server.ID, username)
	if err != nil {
		return nil, nil, err
	}

	streak, err := NewStreakCalculator(repos.Votes, s.clock).ComputeForNewVote(ctx, server.ID, username)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock.Now()
	vote := &domain.Vote{
		ID:                uuid.New(),
		ServerID:          server.ID,
		VoterID:           voter.ID,
		MinecraftUsername: username,
		MinecraftUUID:     minecraftUUID,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		Streak:            streak,
		EarnedRewards:     earned,
		Claimed:           false,
		CreatedAt:         now,
	}
	if err := repos.Votes.Save(ctx, vote); err != nil {
		return nil, nil, err
	}

	if err := recountServerVotes(ctx, repos.Servers, repos.Votes, server.ID, now); err != nil {
		return nil, nil, err
	}

	updated, err := repos.Servers.GetByID(ctx, server.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload server: %w", err)
	}

	s.metrics.ObserveVoteRecordDuration(time.Since(started).Seconds())
	return vote, updated, nil
}

// afterCommit fans the committed vote out to subscribers. Failures here are
// logged and never reach the voter.
func (s *voteService) afterCommit(ctx context.Context, vote *domain.Vote, server *domain.Server) {
	s.metrics.IncVotesRecorded()
	s.metrics.AddRewardsEarned(len(vote.EarnedRewards))

	event := domain.NewVoteReceivedEvent(vote, server)
	if err := s.notifier.PublishVoteReceived(ctx, event); err != nil {
		s.logger.Warn("failed to publish vote received event",
			"vote_id", vote.ID, "server_id", server.ID, "error", err)
	}

	if server.WebhookURL != "" {
		s.webhooks.NotifyVoteReceived(server.WebhookURL, event)
	}
}

func (s *voteService) CanVote(ctx context.Context, serverID uuid.UUID, voter domain.User) (bool, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return false, err
	}
	return NewEligibilityGate(s.votes, s.clock).CanVote(ctx, server, voter)
}

func (s *voteService) CooldownRemaining(ctx context.Context, serverID uuid.UUID, voter domain.User) (*time.Duration, error) {
	server, err := s.servers.GetByID(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return NewEligibilityGate(s.votes, s.clock).CooldownRemaining(ctx, server, voter)
}

func (s *voteService) CurrentStreak(ctx context.Context, serverID uuid.UUID, username string) (int, error) {
	if err := domain.ValidateMinecraftUsername(username); err != nil {
		return 0, err
	}
	return NewStreakCalculator(s.votes, s.clock).Current(ctx, serverID, username)
}

func (s *voteService) Pending(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error) {
	return s.votes.ListUnclaimed(ctx, serverID, playerUUID, limit)
}

func (s *voteService) Claim(ctx context.Context, serverID, voteID uuid.UUID) (*domain.ClaimResult, error) {
	var result *domain.ClaimResult
	err := s.uow.Do(ctx, []string{"claim:" + voteID.String()}, func(ctx context.Context, repos ports.Repositories) error {
		vote, err := repos.Votes.GetByID(ctx, voteID)
		if err != nil {
			return err
		}
		if vote.ServerID != serverID {
			return domain.ErrForbidden
		}
		if vote.Claimed {
			return domain.ErrVoteAlreadyClaimed
		}

		active, err := repos.Rewards.ListActive(ctx, serverID)
		if err != nil {
			return fmt.Errorf("failed to list active rewards: %w", err)
		}

		earned := make(map[uuid.UUID]struct{}, len(vote.EarnedRewards))
		for _, id := range vote.EarnedRewards {
			earned[id] = struct{}{}
		}

		delivered := []domain.Reward{}
		deliveredIDs := []uuid.UUID{}
		commands := []string{}
		for _, reward := range active {
			if _, ok := earned[reward.ID]; !ok {
				continue
			}
			delivered = append(delivered, reward)
			deliveredIDs = append(deliveredIDs, reward.ID)
			commands = append(commands, reward.ProcessedCommands(vote.MinecraftUsername)...)
		}

		now := s.clock.Now()
		claimed, err := domain.MarkClaimed(*vote, deliveredIDs, now)
		if err != nil {
			return err
		}
		if err := repos.Votes.MarkClaimed(ctx, &claimed); err != nil {
			return err
		}
		if err := repos.Rewards.IncrementDailyClaims(ctx, serverID, deliveredIDs, now); err != nil {
			return err
		}

		result = &domain.ClaimResult{Vote: &claimed, Rewards: delivered, Commands: commands}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddRewardsClaimed(len(result.Rewards))
	return result, nil
}

// voteLockKeys serializes votes of the same account and of the same in-game
// name on one server.
func voteLockKeys(serverID, voterID uuid.UUID, username string) []string {
	return []string{
		fmt.Sprintf("vote:%s:player:%s", serverID, strings.ToLower(username)),
		fmt.Sprintf("vote:%s:voter:%s", serverID, voterID),
	}
}

func recountServerVotes(ctx context.Context, servers ports.ServerRepository, votes ports.VoteRepository, serverID uuid.UUID, now time.Time) error {
	total, err := votes.Count(ctx, serverID, nil)
	if err != nil {
		return fmt.Errorf("failed to count total votes: %w", err)
	}

	monthStart := domain.StartOfMonth(now)
	monthly, err := votes.Count(ctx, serverID, &monthStart)
	if err != nil {
		return fmt.Errorf("failed to count monthly votes: %w", err)
	}

	return servers.UpdateVoteCounters(ctx, serverID, total, monthly)
}
