package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

type RewardRepository interface {
	// ListActive returns the active rewards of a server ordered by sort order.
	ListActive(ctx context.Context, serverID uuid.UUID) ([]domain.Reward, error)
	IncrementDailyClaims(ctx context.Context, serverID uuid.UUID, rewardIDs []uuid.UUID, day time.Time) error
}
