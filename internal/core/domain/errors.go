package domain

import "errors"

var (
	ErrServerNotFound     = errors.New("server not found")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrInvalidUsername    = errors.New("minecraft username must be 3-16 letters, numbers or underscores")
	ErrInvalidReward      = errors.New("invalid reward")
	ErrCooldownActive     = errors.New("already voted for this server in the last 24 hours")
	ErrServerNotEligible  = errors.New("server cannot receive votes")
	ErrVoteAlreadyClaimed = errors.New("vote already claimed")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidToken       = errors.New("invalid or revoked token")
	ErrInternal           = errors.New("internal server error")
)
