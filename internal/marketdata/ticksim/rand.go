package ticksim

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// Rand is the uniform [0,1) source behind ticks and seed volumes.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// NewRand returns a seeded source. A zero seed picks a time-based seed.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Seeds returns a constructor of independent sources, one per engine. With
// a non-zero base the n-th source is seeded base+n, so runs are
// reproducible.
func Seeds(base int64) func() Rand {
	var n atomic.Int64
	return func() Rand {
		if base == 0 {
			return NewRand(0)
		}
		return NewRand(base + n.Add(1) - 1)
	}
}

// Sequence replays a fixed list of draws, cycling when exhausted.
// Used to script exact tick streams.
type Sequence struct {
	vals []float64
	i    int
}

// NewSequence creates a Sequence over vals. vals must be non-empty.
func NewSequence(vals ...float64) *Sequence {
	return &Sequence{vals: vals}
}

// Float64 returns the next scripted draw.
func (s *Sequence) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}
