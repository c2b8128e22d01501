package indicator

import "strconv"

// SMA is a simple moving average over the last period closes of a window.
// It keeps a running sum so a tick (Replace) is O(1). The sum is recomputed
// from the window on every Push, once per bar, so rounding error from
// Replace never carries over to the next bar.
type SMA struct {
	period int
	count  int // closes seen, capped at period
	sum    float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{period: period}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

// Seed sums the trailing period closes of w.
func (s *SMA) Seed(w CloseWindow) {
	s.sum = 0
	n := w.Len()
	start := n - s.period
	if start < 0 {
		start = 0
	}
	for i := start; i < n; i++ {
		s.sum += w.CloseAt(i)
	}
	s.count = n - start
}

// Push accounts for the newest close of w, dropping the one period bars
// back.
func (s *SMA) Push(w CloseWindow) {
	s.Seed(w)
}

// Replace adjusts the sum for a change of the trailing close.
func (s *SMA) Replace(old, new float64) {
	if s.count == 0 {
		return
	}
	s.sum += new - old
}

// Value returns the mean once period closes are available.
func (s *SMA) Value() (float64, bool) {
	if s.count < s.period {
		return 0, false
	}
	return s.sum / float64(s.period), true
}
