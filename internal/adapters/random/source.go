// Package random provides the default RandomSource used for price moves and trade outcomes.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source is a goroutine-safe uniform [0, 1) generator.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource creates a source. A zero seed seeds from the clock.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Float64 returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
