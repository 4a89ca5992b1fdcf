package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const serverColumns = `
	s.id, s.owner_id, s.name, s.slug, s.address, s.port, COALESCE(s.webhook_url, ''), s.status,
	EXISTS (
		SELECT 1 FROM server_tokens t
		WHERE t.server_id = s.id AND t.is_paired AND t.is_active
	),
	s.total_votes, s.monthly_votes, s.is_online, s.current_players, s.max_players,
	s.last_ping_at, s.created_at
`

type serverRepository struct {
	db querier
}

func NewServerRepository(db *sql.DB) ports.ServerRepository {
	return &serverRepository{
		db: db,
	}
}

func (r *serverRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers s WHERE s.id = $1 AND s.deleted_at IS NULL`

	server, err := scanServer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return server, nil
}

func (r *serverRepository) GetAll(ctx context.Context) ([]*domain.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers s WHERE s.deleted_at IS NULL ORDER BY s.created_at`
	return r.list(ctx, query)
}

func (r *serverRepository) ListApproved(ctx context.Context) ([]*domain.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers s WHERE s.deleted_at IS NULL AND s.status = 'approved' ORDER BY s.created_at`
	return r.list(ctx, query)
}

func (r *serverRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Server, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []*domain.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating servers: %w", err)
	}
	return servers, nil
}

func (r *serverRepository) UpdateVoteCounters(ctx context.Context, id uuid.UUID, total, monthly int64) error {
	query := `UPDATE servers SET total_votes = $2, monthly_votes = $3, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, total, monthly); err != nil {
		return fmt.Errorf("failed to update vote counters for server %s: %w", id, err)
	}
	return nil
}

func (r *serverRepository) RecordHeartbeat(ctx context.Context, id uuid.UUID, hb domain.Heartbeat, at time.Time) error {
	query := `
		UPDATE servers
		SET is_online = TRUE, current_players = $2, max_players = $3, last_ping_at = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, hb.CurrentPlayers, hb.MaxPlayers, at)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrServerNotFound
	}
	return nil
}

func (r *serverRepository) MarkOfflineBefore(ctx context.Context, threshold time.Time) (int64, error) {
	query := `
		UPDATE servers
		SET is_online = FALSE, current_players = 0, updated_at = NOW()
		WHERE is_online AND (last_ping_at IS NULL OR last_ping_at < $1)
	`
	res, err := r.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to mark servers offline: %w", err)
	}
	return res.RowsAffected()
}

func scanServer(row scanner) (*domain.Server, error) {
	var s domain.Server
	var lastPing sql.NullTime
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Name, &s.Slug, &s.Address, &s.Port, &s.WebhookURL, &s.Status,
		&s.HasPairedIntegration,
		&s.TotalVotes, &s.MonthlyVotes, &s.IsOnline, &s.CurrentPlayers, &s.MaxPlayers,
		&lastPing, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.LastPingAt = timePtr(lastPing)
	return &s, nil
}
