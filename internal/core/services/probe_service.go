package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

const maxConcurrentProbes = 8

type probeService struct {
	servers ports.ServerRepository
	pinger  ports.ServerPinger
	clock   ports.Clock
	logger  *slog.Logger
}

func NewProbeService(servers ports.ServerRepository, pinger ports.ServerPinger, clock ports.Clock, logger *slog.Logger) ports.ProbeService {
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &probeService{
		servers: servers,
		pinger:  pinger,
		clock:   clock,
		logger:  logger,
	}
}

func (s *probeService) ProbeAll(ctx context.Context) (int, error) {
	servers, err := s.servers.ListApproved(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list approved servers: %w", err)
	}

	var wg sync.WaitGroup
	var online atomic.Int64
	sem := make(chan struct{}, maxConcurrentProbes)

	for _, server := range servers {
		wg.Add(1)
		sem <- struct{}{}
		go func(server *domain.Server) {
			defer wg.Done()
			defer func() { <-sem }()

			hb, err := s.pinger.Ping(ctx, server.Address, server.Port)
			if err != nil {
				s.logger.Debug("server did not answer ping", "server_id", server.ID, "error", err)
				return
			}
			if err := s.servers.RecordHeartbeat(ctx, server.ID, hb, s.clock.Now()); err != nil {
				s.logger.Warn("failed to record heartbeat", "server_id", server.ID, "error", err)
				return
			}
			online.Add(1)
		}(server)
	}

	wg.Wait()
	return int(online.Load()), nil
}
