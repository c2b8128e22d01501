package render

import (
	"errors"
	"fmt"
	"sync"

	"livechart/internal/model"
)

var (
	// ErrStaleTime is recorded when an op targets a time before the last element.
	ErrStaleTime = errors.New("render: op time before last element")

	// ErrUpdateMismatch is recorded when an update's time differs from the last element.
	ErrUpdateMismatch = errors.New("render: update time differs from last element")
)

// DefaultBarSpacing is the horizontal room one bar takes.
const DefaultBarSpacing = 6

// Chart is an in-memory chart surface. It keeps the three series exactly as
// a renderer would and rejects ops that break time ordering. It is safe for
// concurrent use: one goroutine applies frames while others read.
type Chart struct {
	mu sync.RWMutex

	price  []model.Bar
	volume []model.VolumePoint
	sma    []model.SMAPoint

	width      int
	barSpacing int

	frames  uint64
	lastSeq uint64
	errs    []error
}

// NewChart creates a chart of the given width.
func NewChart(width int) *Chart {
	return &Chart{width: width, barSpacing: DefaultBarSpacing}
}

// Load implements Surface.
func (c *Chart) Load(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = append([]model.Bar(nil), snap.Price...)
	c.volume = append([]model.VolumePoint(nil), snap.Volume...)
	c.sma = append([]model.SMAPoint(nil), snap.SMA...)
}

// Apply implements Surface.
func (c *Chart) Apply(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	c.lastSeq = f.Seq
	for _, op := range f.Ops {
		if err := c.apply(op); err != nil {
			c.errs = append(c.errs, fmt.Errorf("seq %d %s %s: %w", f.Seq, op.Kind, op.Series, err))
		}
	}
}

func (c *Chart) apply(op Op) error {
	switch op.Series {
	case SeriesPrice:
		b := op.Bar
		b.Time = op.Time
		return applyOp(&c.price, op.Kind, b)
	case SeriesVolume:
		return applyOp(&c.volume, op.Kind, model.VolumePoint{Time: op.Time, Value: op.Value, Up: op.Up})
	case SeriesSMA:
		return applyOp(&c.sma, op.Kind, model.SMAPoint{Time: op.Time, Value: op.Value})
	}
	return fmt.Errorf("render: unknown series %q", op.Series)
}

// timed is any series element.
type timed interface {
	model.Bar | model.VolumePoint | model.SMAPoint
}

func timeOf[T timed](v T) int64 {
	switch p := any(v).(type) {
	case model.Bar:
		return p.Time.UnixNano()
	case model.VolumePoint:
		return p.Time.UnixNano()
	case model.SMAPoint:
		return p.Time.UnixNano()
	}
	return 0
}

func applyOp[T timed](s *[]T, kind OpKind, v T) error {
	n := len(*s)
	switch kind {
	case OpUpdate:
		if n == 0 {
			// First point of a series behaves as an append.
			*s = append(*s, v)
			return nil
		}
		if timeOf((*s)[n-1]) != timeOf(v) {
			return ErrUpdateMismatch
		}
		(*s)[n-1] = v
	case OpAppend:
		if n > 0 && timeOf(v) <= timeOf((*s)[n-1]) {
			return ErrStaleTime
		}
		*s = append(*s, v)
	default:
		return fmt.Errorf("render: unknown op %q", kind)
	}
	return nil
}

// SetBarSpacing changes the horizontal room of one bar (minimum 1).
func (c *Chart) SetBarSpacing(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.barSpacing = n
	c.mu.Unlock()
}

// Resize implements Surface.
func (c *Chart) Resize(width int) {
	if width < 0 {
		width = 0
	}
	c.mu.Lock()
	c.width = width
	c.mu.Unlock()
}

// Width returns the current rendering width.
func (c *Chart) Width() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width
}

// VisibleBars returns how many of the most recent bars fit in the width.
func (c *Chart) VisibleBars() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.width / c.barSpacing
	if n > len(c.price) {
		n = len(c.price)
	}
	return n
}

// Snapshot returns a copy of the three series.
func (c *Chart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Price:  append([]model.Bar(nil), c.price...),
		Volume: append([]model.VolumePoint(nil), c.volume...),
		SMA:    append([]model.SMAPoint(nil), c.sma...),
	}
}

// Visible returns the tail of the snapshot that fits the current width.
func (c *Chart) Visible() Snapshot {
	n := c.VisibleBars()
	snap := c.Snapshot()
	if n < len(snap.Price) {
		from := snap.Price[len(snap.Price)-n:]
		snap.Price = from
		snap.Volume = tailFrom(snap.Volume, n)
		if n > 0 {
			start := from[0].Time
			i := 0
			for i < len(snap.SMA) && snap.SMA[i].Time.Before(start) {
				i++
			}
			snap.SMA = snap.SMA[i:]
		} else {
			snap.SMA = nil
		}
	}
	return snap
}

func tailFrom[T any](s []T, n int) []T {
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Frames returns how many frames were applied and the last tick seq.
func (c *Chart) Frames() (count, lastSeq uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames, c.lastSeq
}

// Errors returns ordering violations seen so far.
func (c *Chart) Errors() []error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]error(nil), c.errs...)
}
