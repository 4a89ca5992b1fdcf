package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type serverTokenRepository struct {
	db querier
}

func NewServerTokenRepository(db *sql.DB) ports.ServerTokenRepository {
	return &serverTokenRepository{db: db}
}

func (r *serverTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.ServerToken, error) {
	query := `
		SELECT id, server_id, name, token_hash, is_paired, paired_at, is_active, revoked_at,
		       last_used_at, COALESCE(last_used_ip, ''), request_count, created_at
		FROM server_tokens
		WHERE token_hash = $1
	`
	var t domain.ServerToken
	var pairedAt, revokedAt, lastUsedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID, &t.ServerID, &t.Name, &t.TokenHash, &t.IsPaired, &pairedAt, &t.IsActive, &revokedAt,
		&lastUsedAt, &t.LastUsedIP, &t.RequestCount, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get server token: %w", err)
	}
	t.PairedAt = timePtr(pairedAt)
	t.RevokedAt = timePtr(revokedAt)
	t.LastUsedAt = timePtr(lastUsedAt)
	return &t, nil
}

func (r *serverTokenRepository) Update(ctx context.Context, t *domain.ServerToken) error {
	query := `
		UPDATE server_tokens
		SET is_paired = $2, paired_at = $3, is_active = $4, revoked_at = $5,
		    last_used_at = $6, last_used_ip = NULLIF($7, ''), request_count = $8
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.IsPaired, nullTime(t.PairedAt), t.IsActive, nullTime(t.RevokedAt),
		nullTime(t.LastUsedAt), t.LastUsedIP, t.RequestCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update server token: %w", err)
	}
	return nil
}
