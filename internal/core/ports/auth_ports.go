package ports

import (
	"context"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

// AgentAuthenticator resolves the bearer token of an in-game agent.
type AgentAuthenticator interface {
	Authenticate(ctx context.Context, bearerToken, remoteIP string) (*domain.Server, error)
}
