package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

type VoteRepository interface {
	Save(ctx context.Context, vote *domain.Vote) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error)
	ExistsSince(ctx context.Context, serverID, voterID uuid.UUID, since time.Time) (bool, error)
	LatestByVoter(ctx context.Context, serverID, voterID uuid.UUID) (*domain.Vote, error)
	LatestByUsername(ctx context.Context, serverID uuid.UUID, username string) (*domain.Vote, error)
	CountByUsername(ctx context.Context, serverID uuid.UUID, username string) (int64, error)
	// Count counts votes for the server created at or after since; a nil
	// since counts all votes.
	Count(ctx context.Context, serverID uuid.UUID, since *time.Time) (int64, error)
	CountUnclaimed(ctx context.Context, serverID uuid.UUID) (int64, error)
	// ClaimedRewardCounts tallies rewards claimed for the server on the UTC
	// calendar day containing day, keyed by reward id.
	ClaimedRewardCounts(ctx context.Context, serverID uuid.UUID, day time.Time) (map[uuid.UUID]int, error)
	ListUnclaimed(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error)
	MarkClaimed(ctx context.Context, vote *domain.Vote) error
	TopVoters(ctx context.Context, serverID uuid.UUID, since *time.Time, limit int) ([]domain.LeaderboardEntry, error)
}

type CastVoteInput struct {
	ServerID          uuid.UUID
	Voter             domain.User
	MinecraftUsername string
	MinecraftUUID     *uuid.UUID
	Metadata          domain.RequestMetadata
}

type VoteService interface {
	// Cast validates the request and records the vote if the voter is
	// currently allowed to vote for the server.
	Cast(ctx context.Context, input CastVoteInput) (*domain.Vote, error)
	// CreateVote records a vote without checking eligibility. Callers must
	// have confirmed CanVote.
	CreateVote(ctx context.Context, server *domain.Server, voter domain.User, username string, minecraftUUID *uuid.UUID, meta domain.RequestMetadata) (*domain.Vote, error)
	CanVote(ctx context.Context, serverID uuid.UUID, voter domain.User) (bool, error)
	CooldownRemaining(ctx context.Context, serverID uuid.UUID, voter domain.User) (*time.Duration, error)
	CurrentStreak(ctx context.Context, serverID uuid.UUID, username string) (int, error)
	Pending(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error)
	Claim(ctx context.Context, serverID, voteID uuid.UUID) (*domain.ClaimResult, error)
}
