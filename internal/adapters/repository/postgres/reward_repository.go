package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type rewardRepository struct {
	db querier
}

func NewRewardRepository(db *sql.DB) ports.RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) ListActive(ctx context.Context, serverID uuid.UUID) ([]domain.Reward, error) {
	query := `
		SELECT id, server_id, name, COALESCE(description, ''), reward_type, commands, chance,
		       is_active, sort_order, min_votes, daily_limit
		FROM rewards
		WHERE server_id = $1 AND is_active
		ORDER BY sort_order ASC, created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []domain.Reward
	for rows.Next() {
		var rw domain.Reward
		var commands pq.StringArray
		var minVotes, dailyLimit sql.NullInt64
		if err := rows.Scan(
			&rw.ID, &rw.ServerID, &rw.Name, &rw.Description, &rw.Type, &commands, &rw.Chance,
			&rw.IsActive, &rw.SortOrder, &minVotes, &dailyLimit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reward: %w", err)
		}
		rw.Commands = []string(commands)
		rw.MinVotes = nullInt(minVotes)
		rw.DailyLimit = nullInt(dailyLimit)
		rewards = append(rewards, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rewards: %w", err)
	}
	return rewards, nil
}

// IncrementDailyClaims bumps the per reward claim counter of the UTC day. A
// reward id listed twice counts twice.
func (r *rewardRepository) IncrementDailyClaims(ctx context.Context, serverID uuid.UUID, rewardIDs []uuid.UUID, day time.Time) error {
	query := `
		INSERT INTO reward_daily_claims (server_id, reward_id, day, claims)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (reward_id, day) DO UPDATE
		SET claims = reward_daily_claims.claims + 1
	`
	d := domain.StartOfDay(day).Format(time.DateOnly)
	for _, id := range rewardIDs {
		if _, err := r.db.ExecContext(ctx, query, serverID, id, d); err != nil {
			return fmt.Errorf("failed to increment daily claims for reward %s: %w", id, err)
		}
	}
	return nil
}
