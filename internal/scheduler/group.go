// Package scheduler runs the timers of one chart view: a recurring tick task
// and one-shot delays, cancelled together when the view goes away.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Group owns a set of timer tasks. Callbacks of one group are serialised and
// never overlap. After Cancel returns no callback of the group runs again.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup
	mu sync.Mutex // held while a callback runs
}

// NewGroup creates a group bound to parent. Cancelling parent cancels the group.
func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Every runs fn every d until the group is cancelled.
func (g *Group) Every(d time.Duration, fn func()) {
	if g.ctx.Err() != nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-g.ctx.Done():
				return
			case <-ticker.C:
				if !g.run(fn) {
					return
				}
			}
		}
	}()
}

// After runs fn once after d unless the group is cancelled first.
// A zero or negative d runs fn as soon as possible.
func (g *Group) After(d time.Duration, fn func()) {
	if g.ctx.Err() != nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-g.ctx.Done():
		case <-timer.C:
			g.run(fn)
		}
	}()
}

// run executes fn under the group lock unless the group was cancelled while
// waiting for it. Returns false if cancelled.
func (g *Group) run(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// Cancel stops every task and waits for a running callback to finish.
// It must not be called from inside a callback of the same group.
func (g *Group) Cancel() {
	g.cancel()
	g.wg.Wait()
}

// Done is closed when the group is cancelled.
func (g *Group) Done() <-chan struct{} { return g.ctx.Done() }
