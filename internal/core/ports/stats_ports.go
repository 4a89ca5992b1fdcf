package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

type StatsService interface {
	TopVoters(ctx context.Context, serverID uuid.UUID, period domain.Period, limit int) ([]domain.LeaderboardEntry, error)
	Recalculate(ctx context.Context, serverID uuid.UUID) error
	RecalculateAll(ctx context.Context) error
	MarkOffline(ctx context.Context, silence time.Duration) (int64, error)
	RecordHeartbeat(ctx context.Context, serverID uuid.UUID, hb domain.Heartbeat) error
	Summary(ctx context.Context, serverID uuid.UUID) (*domain.ServerSummary, error)
}
