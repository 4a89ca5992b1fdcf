package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

type ServerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error)
	GetAll(ctx context.Context) ([]*domain.Server, error)
	ListApproved(ctx context.Context) ([]*domain.Server, error)
	UpdateVoteCounters(ctx context.Context, id uuid.UUID, total, monthly int64) error
	RecordHeartbeat(ctx context.Context, id uuid.UUID, hb domain.Heartbeat, at time.Time) error
	MarkOfflineBefore(ctx context.Context, threshold time.Time) (int64, error)
}

type ServerTokenRepository interface {
	GetByHash(ctx context.Context, tokenHash string) (*domain.ServerToken, error)
	Update(ctx context.Context, token *domain.ServerToken) error
}
