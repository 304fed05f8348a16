package engine

import (
	"math/rand"
	"time"
)

// Source supplies the two random draws a scan run makes at launch.
// Tests substitute a fixed source to force outcomes.
type Source interface {
	// Duration returns a value uniformly distributed in [min, max].
	Duration(min, max time.Duration) time.Duration
	// ShouldFail reports whether this run simulates a hardware failure.
	ShouldFail(probability float64) bool
}

type randSource struct{}

func newRandSource() Source {
	return randSource{}
}

func (randSource) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min+1)))
}

func (randSource) ShouldFail(probability float64) bool {
	return rand.Float64() < probability
}
