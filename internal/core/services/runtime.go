package services

import (
	"math/rand/v2"
	"time"

	"github.com/vncsmyrnk/mcvotes/internal/core/ports"
)

type systemClock struct{}

func NewSystemClock() ports.Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type randomSource struct{}

func NewRandomSource() ports.RandomSource {
	return randomSource{}
}

func (randomSource) Roll() int {
	return rand.IntN(100) + 1
}
