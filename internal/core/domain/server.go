package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultMinecraftPort = 25565

type ServerStatus string

const (
	ServerStatusPending   ServerStatus = "pending"
	ServerStatusApproved  ServerStatus = "approved"
	ServerStatusRejected  ServerStatus = "rejected"
	ServerStatusSuspended ServerStatus = "suspended"
)

type Server struct {
	ID                   uuid.UUID    `json:"id"`
	OwnerID              uuid.UUID    `json:"owner_id"`
	Name                 string       `json:"name"`
	Slug                 string       `json:"slug"`
	Address              string       `json:"address"`
	Port                 int          `json:"port"`
	WebhookURL           string       `json:"-"`
	Status               ServerStatus `json:"status"`
	HasPairedIntegration bool         `json:"has_paired_integration"`
	TotalVotes           int64        `json:"total_votes"`
	MonthlyVotes         int64        `json:"monthly_votes"`
	IsOnline             bool         `json:"is_online"`
	CurrentPlayers       int          `json:"current_players"`
	MaxPlayers           int          `json:"max_players"`
	LastPingAt           *time.Time   `json:"last_ping_at,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

func (s *Server) IsApproved() bool {
	return s.Status == ServerStatusApproved
}

// CanReceiveVotes reports whether the server is approved and has at least
// one paired agent credential.
func (s *Server) CanReceiveVotes() bool {
	return s.IsApproved() && s.HasPairedIntegration
}

func (s *Server) ConnectionString() string {
	if s.Port == 0 || s.Port == DefaultMinecraftPort {
		return s.Address
	}
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

type Heartbeat struct {
	CurrentPlayers int
	MaxPlayers     int
}

type ServerSummary struct {
	ServerID      uuid.UUID `json:"server_id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	IsOnline      bool      `json:"is_online"`
	VotesToday    int64     `json:"today"`
	VotesWeek     int64     `json:"this_week"`
	VotesMonth    int64     `json:"this_month"`
	VotesTotal    int64     `json:"total"`
	PendingClaims int64     `json:"pending_claims"`
}
