package ports

import (
	"context"

	"github.com/vncsmyrnk/mcvotes/internal/core/domain"
)

// ServerPinger queries a running Minecraft server for its player counts.
type ServerPinger interface {
	Ping(ctx context.Context, address string, port int) (domain.Heartbeat, error)
}

type ProbeService interface {
	// ProbeAll pings every approved server and records a heartbeat for those
	// that answer. It returns how many servers answered.
	ProbeAll(ctx context.Context) (int, error)
}
