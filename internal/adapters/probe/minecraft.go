package probe

import (
	"context"
	"fmt"

	"github.com/iverly/go-mcping/mcping"
	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

// timeoutSeconds bounds a single status ping.
const timeoutSeconds = 5

type minecraftPinger struct{}

func NewMinecraftPinger() ports.ServerPinger {
	return minecraftPinger{}
}

// Ping runs the server list ping handshake against address:port. The
// handshake has no context support, so ctx is only checked before dialing.
func (minecraftPinger) Ping(ctx context.Context, address string, port int) (domain.Heartbeat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Heartbeat{}, err
	}
	if port <= 0 || port > 65535 {
		port = domain.DefaultMinecraftPort
	}

	pinger := mcping.NewPinger()
	response, err := pinger.PingWithTimeout(address, uint16(port), timeoutSeconds)
	if err != nil {
		return domain.Heartbeat{}, fmt.Errorf("failed to ping %s:%d: %w", address, port, err)
	}

	return domain.Heartbeat{
		CurrentPlayers: response.PlayerCount.Online,
		MaxPlayers:     response.PlayerCount.Max,
	}, nil
}
