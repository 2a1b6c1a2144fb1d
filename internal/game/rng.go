package game

import (
	"math/rand"
	"sync"
)

// RNG draws uniform integers in [0, n).
type RNG interface {
	IntN(n int) int
}

// SystemRNG draws from the goroutine-safe math/rand global source.
type SystemRNG struct{}

// IntN returns a uniform integer in [0, n).
func (SystemRNG) IntN(n int) int {
	return rand.Intn(n)
}

// FixedRNG replays a fixed sequence of draws, cycling when exhausted.
// Each draw is reduced modulo n. It is used to force outcomes in tests.
type FixedRNG struct {
	mu    sync.Mutex
	draws []int
	next  int
}

// NewFixedRNG creates a FixedRNG replaying draws.
func NewFixedRNG(draws ...int) *FixedRNG {
	if len(draws) == 0 {
		draws = []int{0}
	}
	return &FixedRNG{draws: draws}
}

// IntN returns the next draw modulo n.
func (r *FixedRNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.draws[r.next%len(r.draws)]
	r.next++
	return v % n
}
