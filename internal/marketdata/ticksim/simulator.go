// Package ticksim generates the synthetic tick stream that drives a live chart.
//
// Each tick carries a signed price delta drawn as
//
//	delta = (U - 0.5) * lastClose * Volatility
//
// and a volume increment drawn from [0, MaxTickVolume). Every TicksPerBar-th
// tick is flagged as a bar boundary. The simulator is the only source of
// nondeterminism in the chart engine; everything downstream is a pure
// function of the ticks it emits.
package ticksim

import (
	"math"

	"livechart/internal/model"
)

// Config holds the simulator knobs.
type Config struct {
	// Volatility is the per-tick price spread as a fraction of the last close.
	// Defaults to 0.002.
	Volatility float64

	// TicksPerBar is the number of ticks after which the trailing bar closes.
	// Defaults to 25.
	TicksPerBar int

	// MaxTickVolume bounds the per-tick volume increment. Defaults to 100.
	MaxTickVolume float64
}

func (c *Config) defaults() {
	if c.Volatility == 0 {
		c.Volatility = 0.002
	}
	if c.TicksPerBar == 0 {
		c.TicksPerBar = 25
	}
	if c.MaxTickVolume == 0 {
		c.MaxTickVolume = 100
	}
}

// Simulator produces ticks. It never fails; it is stopped by whoever
// schedules it.
type Simulator struct {
	cfg Config
	rng Rand
	seq uint64
}

// New creates a Simulator drawing from rng.
func New(cfg Config, rng Rand) *Simulator {
	cfg.defaults()
	return &Simulator{cfg: cfg, rng: rng}
}

// Next draws the tick following a trailing close of lastClose.
func (s *Simulator) Next(lastClose float64) model.Tick {
	s.seq++
	volatility := lastClose * s.cfg.Volatility
	delta := (s.rng.Float64() - 0.5) * volatility
	vol := math.Floor(s.rng.Float64() * s.cfg.MaxTickVolume)

	return model.Tick{
		Seq:      s.seq,
		Delta:    delta,
		Volume:   vol,
		Boundary: s.seq%uint64(s.cfg.TicksPerBar) == 0,
	}
}
