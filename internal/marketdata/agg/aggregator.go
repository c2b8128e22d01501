package agg

import (
	"math"
	"time"

	"livechart/internal/marketdata/volume"
	"livechart/internal/model"
	"livechart/internal/series"
)

// MinPrice is the floor applied when a tick would drive the close to zero or below.
const MinPrice = 0.01

// Result describes what one tick did to the series.
type Result struct {
	// Updated is the trailing bar after the tick was folded in.
	Updated model.Bar

	// Opened is the new trailing bar when the tick was a boundary.
	Opened *model.Bar

	// Clamped is true when the close hit the MinPrice floor.
	Clamped bool
}

// Closed reports whether Updated was frozen by this tick.
func (r Result) Closed() bool { return r.Opened != nil }

// Aggregator folds ticks into the trailing bar of a series and rolls over to
// a new bar at boundaries. It is the only writer of its store.
type Aggregator struct {
	store  *series.Store
	volume *volume.Track

	// BarPeriod is the time step between consecutive bars.
	barPeriod time.Duration

	// OnClamp is called when a close is floored to MinPrice (optional).
	OnClamp func()
}

// New creates an Aggregator over store. The trailing bar's volume seeds the
// accumulator.
func New(store *series.Store, barPeriod time.Duration) *Aggregator {
	if barPeriod <= 0 {
		barPeriod = 24 * time.Hour
	}
	return &Aggregator{
		store:     store,
		volume:    volume.NewTrack(store.Last().Volume, 0),
		barPeriod: barPeriod,
	}
}

// Apply incorporates a single tick.
func (a *Aggregator) Apply(tick model.Tick) Result {
	bar := a.store.Last()

	newClose := round2(bar.Close + tick.Delta)
	clamped := false
	if newClose <= 0 {
		newClose = MinPrice
		clamped = true
		if a.OnClamp != nil {
			a.OnClamp()
		}
	}

	if newClose > bar.High {
		bar.High = newClose
	}
	if newClose < bar.Low {
		bar.Low = newClose
	}
	bar.Close = newClose
	bar.Volume = a.volume.Add(tick.Volume)

	// SetLast only fails on a time change, which cannot happen here.
	_ = a.store.SetLast(bar)

	res := Result{Updated: bar, Clamped: clamped}
	if !tick.Boundary {
		return res
	}

	next := model.Bar{
		Time:   a.nextTime(bar.Time),
		Open:   newClose,
		High:   newClose,
		Low:    newClose,
		Close:  newClose,
		Volume: a.volume.Reset(),
	}
	_ = a.store.Append(next)
	res.Opened = &next
	return res
}

// nextTime steps one bar period forward. Day-multiples step by calendar day.
func (a *Aggregator) nextTime(prev time.Time) time.Time {
	if a.barPeriod%(24*time.Hour) == 0 {
		return prev.AddDate(0, 0, int(a.barPeriod/(24*time.Hour)))
	}
	return prev.Add(a.barPeriod)
}

// round2 rounds to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
