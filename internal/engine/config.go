package engine

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the chart engine knobs. Zero values are not defaults; start
// from DefaultConfig and override.
type Config struct {
	TickInterval  time.Duration // cadence of the tick task
	StartDelay    time.Duration // one-shot delay before the first tick
	TicksPerBar   int           // ticks per trailing bar
	Volatility    float64       // per-tick spread as a fraction of close
	SMAPeriod     int           // moving-average window
	MaxTickVolume float64       // per-tick volume drawn from [0, MaxTickVolume)
	SeedVolumeMin float64       // missing history volume drawn from [SeedVolumeMin, SeedVolumeMax)
	SeedVolumeMax float64
	BarPeriod     time.Duration // time step between bars
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:  200 * time.Millisecond,
		StartDelay:    0,
		TicksPerBar:   25,
		Volatility:    0.002,
		SMAPeriod:     14,
		MaxTickVolume: 100,
		SeedVolumeMin: 1000,
		SeedVolumeMax: 6000,
		BarPeriod:     24 * time.Hour,
	}
}

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("engine: invalid config")

// Validate rejects knobs the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval %v: %w", c.TickInterval, ErrInvalidConfig)
	case c.StartDelay < 0:
		return fmt.Errorf("start delay %v: %w", c.StartDelay, ErrInvalidConfig)
	case c.TicksPerBar < 1:
		return fmt.Errorf("ticks per bar %d: %w", c.TicksPerBar, ErrInvalidConfig)
	case c.Volatility <= 0:
		return fmt.Errorf("volatility %v: %w", c.Volatility, ErrInvalidConfig)
	case c.SMAPeriod < 1:
		return fmt.Errorf("sma period %d: %w", c.SMAPeriod, ErrInvalidConfig)
	case c.MaxTickVolume <= 0:
		return fmt.Errorf("max tick volume %v: %w", c.MaxTickVolume, ErrInvalidConfig)
	case c.SeedVolumeMin < 0 || c.SeedVolumeMax < c.SeedVolumeMin:
		return fmt.Errorf("seed volume range [%v,%v): %w", c.SeedVolumeMin, c.SeedVolumeMax, ErrInvalidConfig)
	case c.BarPeriod <= 0 || c.BarPeriod%time.Second != 0:
		// chart times are whole unix seconds
		return fmt.Errorf("bar period %v: %w", c.BarPeriod, ErrInvalidConfig)
	}
	return nil
}
