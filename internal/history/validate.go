// Package history supplies and checks the finite bar history a chart starts from.
package history

import (
	"errors"
	"fmt"

	"livechart/internal/model"
)

var (
	// ErrEmpty means the source returned no bars.
	ErrEmpty = errors.New("history: no bars")

	// ErrNonMonotonic means bar times are not strictly increasing.
	ErrNonMonotonic = errors.New("history: bar times not strictly increasing")

	// ErrInvalidBar means a bar breaks low <= open,close <= high or has
	// non-positive prices or negative volume.
	ErrInvalidBar = errors.New("history: invalid bar")
)

// Validate checks the preconditions an engine needs before it starts.
// The returned error wraps one of the sentinels above with the bar index.
func Validate(bars []model.HistoryBar) error {
	if len(bars) == 0 {
		return ErrEmpty
	}
	for i := range bars {
		h := &bars[i]
		if h.Time.IsZero() {
			return fmt.Errorf("bar %d: missing time: %w", i, ErrInvalidBar)
		}
		if h.Open <= 0 || h.Close <= 0 || h.Low <= 0 {
			return fmt.Errorf("bar %d: non-positive price: %w", i, ErrInvalidBar)
		}
		b := h.Bar(0)
		if !b.Valid() {
			return fmt.Errorf("bar %d: o=%.2f h=%.2f l=%.2f c=%.2f v=%.0f: %w",
				i, b.Open, b.High, b.Low, b.Close, b.Volume, ErrInvalidBar)
		}
		if i > 0 && !h.Time.After(bars[i-1].Time) {
			return fmt.Errorf("bar %d at %s: %w", i, h.Time.Format(model.DateLayout), ErrNonMonotonic)
		}
	}
	return nil
}
