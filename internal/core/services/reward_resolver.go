package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

// RewardResolver decides which active rewards a vote earns at the moment it
// is cast.
//
// Daily limits count claimed rewards, not earned ones: a reward that was
// earned today but not yet delivered in game does not use up its limit.
type RewardResolver struct {
	rewards ports.RewardRepository
	votes   ports.VoteRepository
	clock   ports.Clock
	random  ports.RandomSource
}

func NewRewardResolver(rewards ports.RewardRepository, votes ports.VoteRepository, clock ports.Clock, random ports.RandomSource) *RewardResolver {
	return &RewardResolver{
		rewards: rewards,
		votes:   votes,
		clock:   clock,
		random:  random,
	}
}

// Resolve must run before the new vote is stored; the vote being cast is
// counted towards min_votes thresholds.
func (r *RewardResolver) Resolve(ctx context.Context, serverID uuid.UUID, username string) ([]uuid.UUID, error) {
	active, err := r.rewards.ListActive(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rewards: %w", err)
	}
	earned := []uuid.UUID{}
	if len(active) == 0 {
		return earned, nil
	}

	priorVotes, err := r.votes.CountByUsername(ctx, serverID, username)
	if err != nil {
		return nil, fmt.Errorf("failed to count player votes: %w", err)
	}
	playerVoteCount := priorVotes + 1

	givenToday, err := r.votes.ClaimedRewardCounts(ctx, serverID, r.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to count claimed rewards: %w", err)
	}

	for i := range active {
		if r.grants(&active[i], playerVoteCount, givenToday) {
			earned = append(earned, active[i].ID)
		}
	}
	return earned, nil
}

func (r *RewardResolver) grants(reward *domain.Reward, playerVoteCount int64, givenToday map[uuid.UUID]int) bool {
	if reward.MinVotes != nil && playerVoteCount < int64(*reward.MinVotes) {
		return false
	}
	if reward.DailyLimit != nil && givenToday[reward.ID] >= *reward.DailyLimit {
		return false
	}
	if reward.Chance >= 100 {
		return true
	}
	return r.random.Roll() <= reward.Chance
}
