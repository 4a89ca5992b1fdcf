package domain

import (
	"time"

	"github.com/google/uuid"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
	PeriodAll     Period = "all"
)

const MaxLeaderboardLimit = 100

// ParsePeriod maps a query value onto a Period. An empty value means monthly
// and anything unrecognised means all-time.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case "":
		return PeriodMonthly
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return Period(s)
	}
	return PeriodAll
}

// Since returns the start of the period window containing now, or nil for
// all-time.
func (p Period) Since(now time.Time) *time.Time {
	var t time.Time
	switch p {
	case PeriodDaily:
		t = StartOfDay(now)
	case PeriodWeekly:
		t = StartOfWeek(now)
	case PeriodMonthly:
		t = StartOfMonth(now)
	case PeriodYearly:
		t = StartOfYear(now)
	default:
		return nil
	}
	return &t
}

type LeaderboardEntry struct {
	Position          int        `json:"position"`
	MinecraftUsername string     `json:"player_name"`
	MinecraftUUID     *uuid.UUID `json:"player_uuid,omitempty"`
	VoteCount         int64      `json:"votes"`
	LastVoteAt        time.Time  `json:"last_vote_at"`
}
