package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	goredis "github.com/go-redis/redis/v8"

	"livechart/internal/render"
)

// Follower replays a published ticker onto a local surface.
type Follower struct {
	client *goredis.Client
	cfg    Config
	ticker string
	replay render.Replayer
}

// NewFollower creates a follower drawing ticker on surface.
func NewFollower(client *goredis.Client, cfg Config, ticker string, surface render.Surface) *Follower {
	cfg.defaults()
	return &Follower{
		client: client,
		cfg:    cfg,
		ticker: ticker,
		replay: render.Replayer{Surface: surface},
	}
}

// Run subscribes, loads the cached snapshot and applies messages until ctx
// is cancelled. Subscribing first means no frame published between the
// snapshot read and the subscription is lost.
func (f *Follower) Run(ctx context.Context) error {
	ps := f.client.Subscribe(ctx, f.cfg.Channel(f.ticker))
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	cached, err := f.client.Get(ctx, f.cfg.SnapshotKey(f.ticker)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		slog.Info("[redis] no cached snapshot, waiting for publisher", "ticker", f.ticker)
	case err != nil:
		return fmt.Errorf("redis get snapshot: %w", err)
	default:
		f.handle(cached)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.handle([]byte(msg.Payload))
		}
	}
}

func (f *Follower) handle(payload []byte) {
	m, err := render.DecodeMessage(payload)
	if err != nil {
		slog.Warn("[redis] bad message", "ticker", f.ticker, "error", err)
		return
	}
	f.replay.Handle(m)
}

// FollowView shows one mirrored ticker at a time on a surface. Switch
// returns only after the previous follower has exited, so no message of
// the old ticker reaches the surface once the new one starts.
type FollowView struct {
	ctx    context.Context
	follow func(ctx context.Context, ticker string) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFollowView creates a view replaying tickers onto surface until ctx is
// cancelled.
func NewFollowView(ctx context.Context, client *goredis.Client, cfg Config, surface render.Surface) *FollowView {
	return &FollowView{
		ctx: ctx,
		follow: func(ctx context.Context, ticker string) error {
			return NewFollower(client, cfg, ticker, surface).Run(ctx)
		},
	}
}

// Switch stops the current follower, waits for it and starts following
// ticker.
func (v *FollowView) Switch(ticker string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
	if err := v.ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(v.ctx)
	done := make(chan struct{})
	v.cancel, v.done = cancel, done
	go func() {
		defer close(done)
		if err := v.follow(ctx, ticker); err != nil && ctx.Err() == nil {
			slog.Warn("[redis] follow stopped", "ticker", ticker, "error", err)
		}
	}()
	return nil
}

// Close stops the current follower and waits for it.
func (v *FollowView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *FollowView) stopLocked() {
	if v.cancel == nil {
		return
	}
	v.cancel()
	<-v.done
	v.cancel, v.done = nil, nil
}
