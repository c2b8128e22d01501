// Package volume accumulates synthetic per-tick volume into the trailing bar.
package volume

import "livechart/internal/model"

// Track is the volume accumulator of the trailing bar.
type Track struct {
	current float64
	seed    float64
}

// NewTrack starts accumulating from initial; on every boundary the
// accumulator resets to seed.
func NewTrack(initial, seed float64) *Track {
	if initial < 0 {
		initial = 0
	}
	if seed < 0 {
		seed = 0
	}
	return &Track{current: initial, seed: seed}
}

// Add accumulates v. Negative increments are ignored so volume never
// decreases within a bar.
func (t *Track) Add(v float64) float64 {
	if v > 0 {
		t.current += v
	}
	return t.current
}

// Reset starts a new bar.
func (t *Track) Reset() float64 {
	t.current = t.seed
	return t.current
}

// Current returns the accumulated volume.
func (t *Track) Current() float64 { return t.current }

// Point builds the histogram column for bar, colored by its direction.
func Point(bar model.Bar) model.VolumePoint {
	return model.VolumePoint{Time: bar.Time, Value: bar.Volume, Up: bar.Bullish()}
}
