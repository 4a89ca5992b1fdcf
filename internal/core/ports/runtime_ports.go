package ports

import "time"

type Clock interface {
	Now() time.Time
}

// RandomSource draws uniform integers in [1, 100] for reward chance rolls.
type RandomSource interface {
	Roll() int
}
