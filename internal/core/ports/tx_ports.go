package ports

import "context"

type Repositories struct {
	Servers ServerRepository
	Votes   VoteRepository
	Rewards RewardRepository
}

// UnitOfWork runs fn inside a single transaction. Lock keys are acquired for
// the lifetime of the transaction before fn runs, so concurrent units of work
// sharing a key are serialized.
type UnitOfWork interface {
	Do(ctx context.Context, lockKeys []string, fn func(ctx context.Context, repos Repositories) error) error
}
