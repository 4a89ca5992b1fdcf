package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const VoteCooldown = 24 * time.Hour

// EligibilityGate decides whether a platform account may vote for a server
// right now. It never writes.
type EligibilityGate struct {
	votes ports.VoteRepository
	clock ports.Clock
}

func NewEligibilityGate(votes ports.VoteRepository, clock ports.Clock) *EligibilityGate {
	return &EligibilityGate{votes: votes, clock: clock}
}

func (g *EligibilityGate) CanVote(ctx context.Context, server *domain.Server, voter domain.User) (bool, error) {
	if !server.CanReceiveVotes() {
		return false, nil
	}
	if voter.IsAdmin {
		return true, nil
	}

	since := g.clock.Now().Add(-VoteCooldown)
	voted, err := g.votes.ExistsSince(ctx, server.ID, voter.ID, since)
	if err != nil {
		return false, fmt.Errorf("failed to check cooldown: %w", err)
	}
	return !voted, nil
}

// CooldownRemaining returns nil when no cooldown applies, otherwise the time
// left until the latest vote of the pair is 24 hours old.
func (g *EligibilityGate) CooldownRemaining(ctx context.Context, server *domain.Server, voter domain.User) (*time.Duration, error) {
	if voter.IsAdmin {
		return nil, nil
	}

	latest, err := g.votes.LatestByVoter(ctx, server.ID, voter.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest vote: %w", err)
	}
	if latest == nil {
		return nil, nil
	}

	remaining := latest.CreatedAt.Add(VoteCooldown).Sub(g.clock.Now())
	if remaining <= 0 {
		return nil, nil
	}
	return &remaining, nil
}
