package domain

import (
	"github.com/google/uuid"
)

// User is the platform account submitting a vote.
type User struct {
	ID      uuid.UUID `json:"id"`
	IsAdmin bool      `json:"is_admin"`
}
