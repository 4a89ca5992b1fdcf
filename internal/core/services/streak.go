package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const (
	streakWindowStart = 24 * time.Hour
	streakWindowEnd   = 48 * time.Hour
)

// StreakCalculator tracks consecutive votes of an in-game identity on a
// server, independent of the platform account that submitted them.
type StreakCalculator struct {
	votes ports.VoteRepository
	clock ports.Clock
}

func NewStreakCalculator(votes ports.VoteRepository, clock ports.Clock) *StreakCalculator {
	return &StreakCalculator{votes: votes, clock: clock}
}

// ComputeForNewVote returns the streak to store on a vote that is about to be
// inserted. It must run before the insert.
func (c *StreakCalculator) ComputeForNewVote(ctx context.Context, serverID uuid.UUID, username string) (int, error) {
	prior, err := c.votes.LatestByUsername(ctx, serverID, username)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest vote for streak: %w", err)
	}
	if prior == nil {
		return 1, nil
	}

	elapsed := c.clock.Now().Sub(prior.CreatedAt)
	if elapsed >= streakWindowStart && elapsed <= streakWindowEnd {
		return prior.Streak + 1, nil
	}
	return 1, nil
}

// Current returns the stored streak of the latest vote while it is still
// within the grace window, 0 otherwise.
func (c *StreakCalculator) Current(ctx context.Context, serverID uuid.UUID, username string) (int, error) {
	prior, err := c.votes.LatestByUsername(ctx, serverID, username)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest vote for streak: %w", err)
	}
	if prior == nil {
		return 0, nil
	}

	if c.clock.Now().Sub(prior.CreatedAt) <= streakWindowEnd {
		return prior.Streak, nil
	}
	return 0, nil
}
