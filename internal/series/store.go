// Package series holds the bar sequence of one chart: a run of closed,
// immutable bars followed by exactly one open (trailing) bar.
package series

import (
	"errors"
	"fmt"

	"livechart/internal/model"
)

// ErrEmpty is returned when a store would be created without a seed bar.
var ErrEmpty = errors.New("series: at least one bar is required")

// ErrOutOfOrder is returned by Append when the new bar is not strictly later
// than the trailing bar.
var ErrOutOfOrder = errors.New("series: bar time not after trailing bar")

// Store owns the bar sequence and serves the close-price window read by the
// moving average. It is not safe for concurrent use; the engine serialises access.
type Store struct {
	bars []model.Bar
}

// New creates a store from a copy of bars. bars must be non-empty and strictly
// increasing in time; callers validate history before building a store.
func New(bars []model.Bar) (*Store, error) {
	if len(bars) == 0 {
		return nil, ErrEmpty
	}
	cp := make([]model.Bar, len(bars), len(bars)+64)
	copy(cp, bars)
	return &Store{bars: cp}, nil
}

// Len returns the number of bars including the trailing one.
func (s *Store) Len() int { return len(s.bars) }

// Last returns a copy of the trailing bar.
func (s *Store) Last() model.Bar { return s.bars[len(s.bars)-1] }

// At returns a copy of bar i.
func (s *Store) At(i int) model.Bar { return s.bars[i] }

// CloseAt returns the close of bar i.
func (s *Store) CloseAt(i int) float64 { return s.bars[i].Close }

// SetLast replaces the trailing bar. Its time must not change.
func (s *Store) SetLast(b model.Bar) error {
	last := &s.bars[len(s.bars)-1]
	if !b.Time.Equal(last.Time) {
		return fmt.Errorf("series: trailing bar time %s cannot change to %s",
			last.Time.Format("2006-01-02T15:04:05Z07:00"), b.Time.Format("2006-01-02T15:04:05Z07:00"))
	}
	*last = b
	return nil
}

// Append freezes the current trailing bar and makes b the new trailing bar.
func (s *Store) Append(b model.Bar) error {
	if !b.Time.After(s.bars[len(s.bars)-1].Time) {
		return ErrOutOfOrder
	}
	s.bars = append(s.bars, b)
	return nil
}

// Bars returns a copy of the whole sequence.
func (s *Store) Bars() []model.Bar {
	cp := make([]model.Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}
