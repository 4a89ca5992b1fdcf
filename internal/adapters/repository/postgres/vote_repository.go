package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const voteColumns = `
	id, server_id, voter_id, minecraft_username, minecraft_uuid, ip_address, COALESCE(user_agent, ''),
	streak, earned_rewards, claimed, claimed_at, COALESCE(claimed_rewards, '{}'), created_at
`

type voteRepository struct {
	db querier
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{
		db: db,
	}
}

func (r *voteRepository) Save(ctx context.Context, vote *domain.Vote) error {
	query := `
		INSERT INTO votes (id, server_id, voter_id, minecraft_username, minecraft_uuid, ip_address,
		                   user_agent, streak, earned_rewards, claimed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11);
	`
	_, err := r.db.ExecContext(ctx, query,
		vote.ID, vote.ServerID, vote.VoterID, vote.MinecraftUsername, nullUUID(vote.MinecraftUUID),
		vote.IPAddress, vote.UserAgent, vote.Streak, uuidArray(vote.EarnedRewards), vote.Claimed, vote.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save vote: %w", err)
	}
	return nil
}

func (r *voteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE id = $1`

	vote, err := scanVote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return vote, nil
}

func (r *voteRepository) ExistsSince(ctx context.Context, serverID, voterID uuid.UUID, since time.Time) (bool, error) {
	query := `SELECT 1 FROM votes WHERE server_id = $1 AND voter_id = $2 AND created_at >= $3 LIMIT 1`
	var exists int
	err := r.db.QueryRowContext(ctx, query, serverID, voterID, since).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existing vote: %w", err)
	}
	return true, nil
}

func (r *voteRepository) LatestByVoter(ctx context.Context, serverID, voterID uuid.UUID) (*domain.Vote, error) {
	query := `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE server_id = $1 AND voter_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.latest(ctx, query, serverID, voterID)
}

func (r *voteRepository) LatestByUsername(ctx context.Context, serverID uuid.UUID, username string) (*domain.Vote, error) {
	query := `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE server_id = $1 AND minecraft_username = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.latest(ctx, query, serverID, username)
}

func (r *voteRepository) latest(ctx context.Context, query string, args ...any) (*domain.Vote, error) {
	vote, err := scanVote(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest vote: %w", err)
	}
	return vote, nil
}

func (r *voteRepository) CountByUsername(ctx context.Context, serverID uuid.UUID, username string) (int64, error) {
	query := `SELECT COUNT(*) FROM votes WHERE server_id = $1 AND minecraft_username = $2`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, serverID, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count player votes: %w", err)
	}
	return count, nil
}

func (r *voteRepository) Count(ctx context.Context, serverID uuid.UUID, since *time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM votes
		WHERE server_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
	`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, serverID, nullTime(since)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

func (r *voteRepository) CountUnclaimed(ctx context.Context, serverID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM votes WHERE server_id = $1 AND NOT claimed`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, serverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unclaimed votes: %w", err)
	}
	return count, nil
}

func (r *voteRepository) ClaimedRewardCounts(ctx context.Context, serverID uuid.UUID, day time.Time) (map[uuid.UUID]int, error) {
	query := `SELECT reward_id, claims FROM reward_daily_claims WHERE server_id = $1 AND day = $2`
	rows, err := r.db.QueryContext(ctx, query, serverID, domain.StartOfDay(day).Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch daily claims: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var rewardID uuid.UUID
		var claims int
		if err := rows.Scan(&rewardID, &claims); err != nil {
			return nil, fmt.Errorf("failed to scan daily claims: %w", err)
		}
		counts[rewardID] = claims
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily claims: %w", err)
	}
	return counts, nil
}

func (r *voteRepository) ListUnclaimed(ctx context.Context, serverID uuid.UUID, playerUUID *uuid.UUID, limit int) ([]*domain.Vote, error) {
	query := `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE server_id = $1 AND NOT claimed AND ($2::uuid IS NULL OR minecraft_uuid = $2)
		ORDER BY created_at ASC
	`
	args := []any{serverID, nullUUID(playerUUID)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclaimed votes: %w", err)
	}
	defer rows.Close()

	votes := []*domain.Vote{}
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating votes: %w", err)
	}
	return votes, nil
}

func (r *voteRepository) MarkClaimed(ctx context.Context, vote *domain.Vote) error {
	query := `
		UPDATE votes
		SET claimed = TRUE, claimed_at = $2, claimed_rewards = $3, updated_at = NOW()
		WHERE id = $1 AND NOT claimed
	`
	res, err := r.db.ExecContext(ctx, query, vote.ID, nullTime(vote.ClaimedAt), uuidArray(vote.ClaimedRewards))
	if err != nil {
		return fmt.Errorf("failed to mark vote claimed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark vote claimed: %w", err)
	}
	if n == 0 {
		return domain.ErrVoteAlreadyClaimed
	}
	return nil
}

// TopVoters ranks in-game names by vote count. Equal counts are ordered by
// name so the ranking is stable between calls.
func (r *voteRepository) TopVoters(ctx context.Context, serverID uuid.UUID, since *time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT minecraft_username,
		       (ARRAY_AGG(minecraft_uuid ORDER BY created_at DESC) FILTER (WHERE minecraft_uuid IS NOT NULL))[1],
		       COUNT(*) AS vote_count,
		       MAX(created_at)
		FROM votes
		WHERE server_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		GROUP BY minecraft_username
		ORDER BY vote_count DESC, minecraft_username ASC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, serverID, nullTime(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top voters: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		var playerUUID uuid.NullUUID
		if err := rows.Scan(&e.MinecraftUsername, &playerUUID, &e.VoteCount, &e.LastVoteAt); err != nil {
			return nil, fmt.Errorf("failed to scan top voter: %w", err)
		}
		e.MinecraftUUID = uuidPtr(playerUUID)
		e.LastVoteAt = e.LastVoteAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top voters: %w", err)
	}
	return entries, nil
}

func scanVote(row scanner) (*domain.Vote, error) {
	var v domain.Vote
	var playerUUID uuid.NullUUID
	var earned, claimedRewards pq.StringArray
	var claimedAt sql.NullTime
	err := row.Scan(
		&v.ID, &v.ServerID, &v.VoterID, &v.MinecraftUsername, &playerUUID, &v.IPAddress, &v.UserAgent,
		&v.Streak, &earned, &v.Claimed, &claimedAt, &claimedRewards, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.MinecraftUUID = uuidPtr(playerUUID)
	v.ClaimedAt = timePtr(claimedAt)
	v.CreatedAt = v.CreatedAt.UTC()
	if v.EarnedRewards, err = parseUUIDs(earned); err != nil {
		return nil, err
	}
	if v.ClaimedRewards, err = parseUUIDs(claimedRewards); err != nil {
		return nil, err
	}
	return &v, nil
}
