package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type unitOfWork struct {
	db *sql.DB
}

func NewUnitOfWork(db *sql.DB) ports.UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Do(ctx context.Context, lockKeys []string, fn func(ctx context.Context, repos ports.Repositories) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Sorted acquisition keeps two units of work with overlapping keys from
	// deadlocking each other.
	keys := append([]string{}, lockKeys...)
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
	}

	repos := ports.Repositories{
		Servers: &serverRepository{db: tx},
		Votes:   &voteRepository{db: tx},
		Rewards: &rewardRepository{db: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
