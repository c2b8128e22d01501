// Package engine runs a live candlestick chart: it loads a finite bar history
// into a render surface and then folds a simulated tick stream into the
// trailing bar, its volume column and the moving-average line.
//
// Per tick the surface receives exactly one frame holding an update of the
// open price bar and volume column (and of the SMA point once it is defined).
// A boundary tick additionally appends the new trailing bar, its volume column
// and, when defined, its SMA point.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"livechart/internal/history"
	"livechart/internal/indicator"
	"livechart/internal/logger"
	"livechart/internal/marketdata/agg"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/marketdata/volume"
	"livechart/internal/model"
	"livechart/internal/render"
	"livechart/internal/scheduler"
	"livechart/internal/series"
)

var (
	// ErrNotStarted is returned by Step before Load or Start succeeded.
	ErrNotStarted = errors.New("engine: not started")

	// ErrStopped is returned once Stop was called.
	ErrStopped = errors.New("engine: stopped")

	// ErrAlreadyStarted is returned by a second Load or Start.
	ErrAlreadyStarted = errors.New("engine: already started")
)

type state int

const (
	stateIdle state = iota
	stateLoaded
	stateStopped
)

// Engine owns the bar series, the SMA and the volume accumulator of one
// chart subject. It is the only writer of its surface.
type Engine struct {
	mu      sync.Mutex
	state   state
	cfg     Config
	surface render.Surface
	rng     ticksim.Rand

	store *series.Store
	agg   *agg.Aggregator
	sim   *ticksim.Simulator
	sma   indicator.Indicator
	group *scheduler.Group

	// OnStep is called after every tick with the aggregation result and the
	// time spent producing the frame (optional).
	OnStep func(res agg.Result, elapsed time.Duration)

	// OnClamp is called when a simulated close is floored (optional).
	OnClamp func()
}

// New creates an idle engine drawing randomness from rng.
func New(surface render.Surface, rng ticksim.Rand) *Engine {
	return &Engine{surface: surface, rng: rng}
}

// Load validates history and cfg, builds the series state and pushes the
// initial snapshot to the surface. No timer is started.
func (e *Engine) Load(bars []model.HistoryBar, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := history.Validate(bars); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateIdle {
		return ErrAlreadyStarted
	}

	seeded := make([]model.Bar, len(bars))
	for i := range bars {
		vol := 0.0
		if bars[i].Volume == nil {
			vol = e.seedVolume(cfg)
		}
		seeded[i] = bars[i].Bar(vol)
	}
	store, err := series.New(seeded)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	e.cfg = cfg
	e.store = store
	e.agg = agg.New(store, cfg.BarPeriod)
	e.agg.OnClamp = e.OnClamp
	e.sim = ticksim.New(ticksim.Config{
		Volatility:    cfg.Volatility,
		TicksPerBar:   cfg.TicksPerBar,
		MaxTickVolume: cfg.MaxTickVolume,
	}, e.rng)
	e.sma = indicator.NewSMA(cfg.SMAPeriod)
	e.sma.Seed(store)

	e.surface.Load(e.snapshot())
	e.state = stateLoaded
	return nil
}

// Start loads history and schedules the tick task. The first tick fires
// StartDelay + TickInterval after Start returns. Cancelling ctx stops the
// timers like Stop does.
func (e *Engine) Start(ctx context.Context, bars []model.HistoryBar, cfg Config) error {
	if err := e.Load(bars, cfg); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateLoaded {
		return ErrStopped
	}
	g := scheduler.NewGroup(ctx)
	e.group = g
	g.After(cfg.StartDelay, func() {
		g.Every(cfg.TickInterval, e.tick)
	})

	slog.Info("[engine] started", append(logger.LogWithSession(ctx),
		"bars", e.store.Len(),
		"interval", cfg.TickInterval,
		"ticks_per_bar", cfg.TicksPerBar,
		"indicator", e.sma.Name(),
	)...)
	return nil
}

// tick is the timer callback.
func (e *Engine) tick() {
	if _, err := e.Step(); err != nil && !errors.Is(err, ErrStopped) {
		slog.Warn("[engine] tick failed", "error", err)
	}
}

// Step draws one tick, folds it into the series and applies the resulting
// frame to the surface.
func (e *Engine) Step() (render.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateIdle:
		return render.Frame{}, ErrNotStarted
	case stateStopped:
		return render.Frame{}, ErrStopped
	}

	start := time.Now()
	prevClose := e.store.Last().Close

	tick := e.sim.Next(prevClose)
	res := e.agg.Apply(tick)
	e.sma.Replace(prevClose, res.Updated.Close)

	ops := make([]render.Op, 0, 6)
	ops = e.appendOps(ops, render.OpUpdate, res.Updated)
	if res.Closed() {
		e.sma.Push(e.store)
		ops = e.appendOps(ops, render.OpAppend, *res.Opened)
	}

	frame := render.Frame{Seq: tick.Seq, Ops: ops}
	e.surface.Apply(frame)

	if e.OnStep != nil {
		e.OnStep(res, time.Since(start))
	}
	return frame, nil
}

// appendOps adds the price, volume and (if defined) SMA ops for bar.
func (e *Engine) appendOps(ops []render.Op, kind render.OpKind, bar model.Bar) []render.Op {
	vp := volume.Point(bar)
	ops = append(ops,
		render.Op{Kind: kind, Series: render.SeriesPrice, Time: bar.Time, Bar: bar},
		render.Op{Kind: kind, Series: render.SeriesVolume, Time: bar.Time, Value: vp.Value, Up: vp.Up},
	)
	if v, ok := e.sma.Value(); ok {
		ops = append(ops, render.Op{Kind: kind, Series: render.SeriesSMA, Time: bar.Time, Value: v})
	}
	return ops
}

// Stop cancels the timers and waits for an in-flight tick. After Stop
// returns the surface receives no further calls. Stop is idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.state != stateStopped
	e.state = stateStopped
	g := e.group
	e.group = nil
	e.mu.Unlock()

	if g != nil {
		g.Cancel()
	}
	if wasRunning && g != nil {
		slog.Info("[engine] stopped")
	}
}

// Resize forwards a container resize to the surface. Data is unchanged.
func (e *Engine) Resize(width int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateStopped {
		return
	}
	e.surface.Resize(width)
}

// Bars returns a copy of the series.
func (e *Engine) Bars() []model.Bar {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil
	}
	return e.store.Bars()
}

// SMA returns the current moving-average value.
func (e *Engine) SMA() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sma == nil {
		return 0, false
	}
	return e.sma.Value()
}

// snapshot builds the initial series from the store.
func (e *Engine) snapshot() render.Snapshot {
	bars := e.store.Bars()
	snap := render.Snapshot{
		Price:  bars,
		Volume: make([]model.VolumePoint, len(bars)),
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		snap.Volume[i] = volume.Point(b)
		closes[i] = b.Close
	}

	period := e.cfg.SMAPeriod
	for i, v := range indicator.BulkSMA(closes, period) {
		snap.SMA = append(snap.SMA, model.SMAPoint{Time: bars[i+period-1].Time, Value: v})
	}
	return snap
}

// seedVolume draws the volume of a history bar that came without one.
func (e *Engine) seedVolume(cfg Config) float64 {
	span := cfg.SeedVolumeMax - cfg.SeedVolumeMin
	return math.Floor(e.rng.Float64()*span + cfg.SeedVolumeMin)
}
