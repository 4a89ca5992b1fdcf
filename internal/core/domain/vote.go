package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

var minecraftUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

func ValidateMinecraftUsername(username string) error {
	if !minecraftUsernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

type Vote struct {
	ID                uuid.UUID   `json:"id"`
	ServerID          uuid.UUID   `json:"server_id"`
	VoterID           uuid.UUID   `json:"voter_id"`
	MinecraftUsername string      `json:"minecraft_username"`
	MinecraftUUID     *uuid.UUID  `json:"minecraft_uuid,omitempty"`
	IPAddress         string      `json:"-"`
	UserAgent         string      `json:"-"`
	Streak            int         `json:"streak"`
	EarnedRewards     []uuid.UUID `json:"earned_rewards"`
	Claimed           bool        `json:"claimed"`
	ClaimedAt         *time.Time  `json:"claimed_at,omitempty"`
	ClaimedRewards    []uuid.UUID `json:"claimed_rewards,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

type RequestMetadata struct {
	IPAddress string
	UserAgent string
}

// MarkClaimed records the delivery of rewards by the in-game agent. A vote is
// claimed at most once.
func MarkClaimed(v Vote, rewards []uuid.UUID, at time.Time) (Vote, error) {
	if v.Claimed {
		return v, ErrVoteAlreadyClaimed
	}
	v.Claimed = true
	v.ClaimedAt = &at
	v.ClaimedRewards = append([]uuid.UUID{}, rewards...)
	return v, nil
}

// VoteReceivedEvent is published to realtime subscribers and webhooks once a
// vote is committed.
type VoteReceivedEvent struct {
	VoteID            uuid.UUID  `json:"vote_id"`
	MinecraftUsername string     `json:"minecraft_username"`
	MinecraftUUID     *uuid.UUID `json:"minecraft_uuid,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ServerID          uuid.UUID  `json:"server_id"`
	ServerName        string     `json:"server_name"`
	ServerSlug        string     `json:"server_slug"`
	MonthlyVotes      int64      `json:"monthly_votes"`
	TotalVotes        int64      `json:"total_votes"`
}

func NewVoteReceivedEvent(v *Vote, s *Server) VoteReceivedEvent {
	return VoteReceivedEvent{
		VoteID:            v.ID,
		MinecraftUsername: v.MinecraftUsername,
		MinecraftUUID:     v.MinecraftUUID,
		CreatedAt:         v.CreatedAt,
		ServerID:          s.ID,
		ServerName:        s.Name,
		ServerSlug:        s.Slug,
		MonthlyVotes:      s.MonthlyVotes,
		TotalVotes:        s.TotalVotes,
	}
}
