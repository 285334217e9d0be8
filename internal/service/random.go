package service

import (
	"math/rand/v2"
	"time"
)

// Rand is the randomness the service needs. *rand.Rand satisfies it.
type Rand interface {
	Int64N(n int64) int64
	Perm(n int) []int
}

// NewRand returns a Rand seeded from the runtime's entropy source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// randomDelay returns a whole number of seconds in [min, max], both ends
// included.
func randomDelay(r Rand, min, max time.Duration) time.Duration {
	lo := int64(min / time.Second)
	hi := int64(max / time.Second)
	if hi <= lo {
		return time.Duration(lo) * time.Second
	}
	return time.Duration(lo+r.Int64N(hi-lo+1)) * time.Second
}
