package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServerToken is a credential held by the in-game agent of a server. Only
// active, paired tokens authenticate agent requests.
type ServerToken struct {
	ID           uuid.UUID  `json:"id"`
	ServerID     uuid.UUID  `json:"server_id"`
	Name         string     `json:"name"`
	TokenHash    string     `json:"-"`
	IsPaired     bool       `json:"is_paired"`
	PairedAt     *time.Time `json:"paired_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP   string     `json:"last_used_ip,omitempty"`
	RequestCount int64      `json:"request_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (t ServerToken) Authenticates() bool {
	return t.IsActive && t.IsPaired
}

func MarkPaired(t ServerToken, at time.Time) ServerToken {
	t.IsPaired = true
	t.PairedAt = &at
	return t
}

func Revoke(t ServerToken, at time.Time) ServerToken {
	t.IsActive = false
	t.RevokedAt = &at
	return t
}

func RecordUsage(t ServerToken, ip string, at time.Time) ServerToken {
	t.LastUsedAt = &at
	t.LastUsedIP = ip
	t.RequestCount++
	return t
}
