package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type RewardType string

const (
	RewardTypeCommand    RewardType = "command"
	RewardTypeItem       RewardType = "item"
	RewardTypeCurrency   RewardType = "currency"
	RewardTypePermission RewardType = "permission"
	RewardTypeRank       RewardType = "rank"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardTypeCommand, RewardTypeItem, RewardTypeCurrency, RewardTypePermission, RewardTypeRank:
		return true
	}
	return false
}

type Reward struct {
	ID          uuid.UUID  `json:"id"`
	ServerID    uuid.UUID  `json:"server_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Type        RewardType `json:"type"`
	Commands    []string   `json:"commands"`
	Chance      int        `json:"chance"`
	IsActive    bool       `json:"is_active"`
	SortOrder   int        `json:"sort_order"`
	MinVotes    *int       `json:"min_votes,omitempty"`
	DailyLimit  *int       `json:"daily_limit,omitempty"`
}

func (r *Reward) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidReward)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidReward, r.Type)
	}
	if r.Chance < 1 || r.Chance > 100 {
		return fmt.Errorf("%w: chance must be between 1 and 100", ErrInvalidReward)
	}
	if r.MinVotes != nil && *r.MinVotes < 0 {
		return fmt.Errorf("%w: min_votes must not be negative", ErrInvalidReward)
	}
	if r.DailyLimit != nil && *r.DailyLimit < 0 {
		return fmt.Errorf("%w: daily_limit must not be negative", ErrInvalidReward)
	}
	return nil
}

// ProcessedCommands substitutes the player placeholders in every command.
func (r *Reward) ProcessedCommands(player string) []string {
	replacer := strings.NewReplacer("{player}", player, "{username}", player)
	commands := make([]string, 0, len(r.Commands))
	for _, c := range r.Commands {
		commands = append(commands, replacer.Replace(c))
	}
	return commands
}

type ClaimResult struct {
	Vote     *Vote    `json:"vote"`
	Rewards  []Reward `json:"rewards"`
	Commands []string `json:"commands"`
}
