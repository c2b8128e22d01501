package engine

import (
	"context"
	"log/slog"
	"sync"

	"livechart/internal/marketdata/ticksim"
	"livechart/internal/model"
	"livechart/internal/render"
)

// SurfaceFactory returns the surface a subject is drawn on.
type SurfaceFactory func(subject string) render.Surface

// Controller is one chart view. It owns at most one running engine and
// replaces it when the subject (ticker or history) changes: the old engine
// is stopped before the new one loads, so stale ticks never reach a
// decommissioned series.
type Controller struct {
	mu      sync.Mutex
	cfg     Config
	surface SurfaceFactory
	newRand func() ticksim.Rand

	current *Engine
	subject string
	width   int

	// Configure is called on every new engine before it starts (optional).
	Configure func(subject string, e *Engine)
}

// NewController creates a view drawing on surfaces from factory. newRand
// supplies the randomness of each new engine.
func NewController(cfg Config, factory SurfaceFactory, newRand func() ticksim.Rand) *Controller {
	return &Controller{cfg: cfg, surface: factory, newRand: newRand}
}

// Switch tears down the current engine and starts one for subject. On a
// precondition failure no engine is left running and the error is returned.
func (c *Controller) Switch(ctx context.Context, subject string, bars []model.HistoryBar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	surface := c.surface(subject)
	if c.width > 0 {
		surface.Resize(c.width)
	}
	e := New(surface, c.newRand())
	if c.Configure != nil {
		c.Configure(subject, e)
	}
	if err := e.Start(ctx, bars, c.cfg); err != nil {
		slog.Warn("[controller] start failed", "subject", subject, "error", err)
		return err
	}
	c.current = e
	c.subject = subject
	return nil
}

// Resize forwards a container resize to the running engine's surface and
// remembers it for future subjects.
func (c *Controller) Resize(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	if c.current != nil {
		c.current.Resize(width)
	}
}

// Subject returns the subject being charted, or "".
func (c *Controller) Subject() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subject
}

// Engine returns the running engine, or nil.
func (c *Controller) Engine() *Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close unmounts the view.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.current == nil {
		return
	}
	c.current.Stop()
	slog.Info("[controller] released subject", "subject", c.subject)
	c.current = nil
	c.subject = ""
}
