package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type agentAuthService struct {
	tokens  ports.ServerTokenRepository
	servers ports.ServerRepository
	clock   ports.Clock
	logger  *slog.Logger
}

func NewAgentAuthService(tokens ports.ServerTokenRepository, servers ports.ServerRepository, clock ports.Clock, logger *slog.Logger) ports.AgentAuthenticator {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &agentAuthService{tokens: tokens, servers: servers, clock: clock, logger: logger}
}

func (s *agentAuthService) Authenticate(ctx context.Context, bearerToken, remoteIP string) (*domain.Server, error) {
	if bearerToken == "" {
		return nil, domain.ErrInvalidToken
	}

	token, err := s.tokens.GetByHash(ctx, HashToken(bearerToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get server token: %w", err)
	}
	if token == nil || !token.Authenticates() {
		return nil, domain.ErrInvalidToken
	}

	server, err := s.servers.GetByID(ctx, token.ServerID)
	if err != nil {
		if errors.Is(err, domain.ErrServerNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	if !server.IsApproved() {
		return nil, domain.ErrForbidden
	}

	used := domain.RecordUsage(*token, remoteIP, s.clock.Now())
	if err := s.tokens.Update(ctx, &used); err != nil {
		s.logger.Warn("failed to record token usage", "token_id", token.ID, "error", err)
	}

	return server, nil
}

func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
