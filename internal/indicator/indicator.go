// Package indicator provides chart overlays computed over a bar series.
//
// Overlays do not copy prices. They read the close-price window owned by the
// series store through the CloseWindow interface and keep only derived state,
// so the cost of a tick is independent of the series length.
package indicator

// CloseWindow is read access to the close prices of a series, oldest first.
// The last index is the live trailing close.
type CloseWindow interface {
	Len() int
	CloseAt(i int) float64
}

// Indicator is an incrementally maintained overlay.
type Indicator interface {
	// Name returns the overlay name (e.g. "SMA_14").
	Name() string

	// Seed primes the overlay from the whole window.
	Seed(w CloseWindow)

	// Push accounts for a close that was appended to the window.
	Push(w CloseWindow)

	// Replace accounts for the trailing close changing from old to new.
	Replace(old, new float64)

	// Value returns the current value and whether it is defined.
	Value() (float64, bool)
}
