// Package redis mirrors chart engines to Redis so that any number of remote
// views can follow one simulated ticker: frames go out on Pub/Sub and the
// latest snapshot is cached under a key with a TTL.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"livechart/internal/render"
)

// Client is the subset of *goredis.Client the publisher uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// Config configures the connection and key layout.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Prefix namespaces channels ({Prefix}:{ticker}) and snapshot keys
	// ({Prefix}:snapshot:{ticker}).
	Prefix      string
	SnapshotTTL time.Duration
	OpTimeout   time.Duration

	// QueueSize bounds the messages waiting to be written per publisher.
	QueueSize int
}

func (c *Config) defaults() {
	if c.Prefix == "" {
		c.Prefix = "chart"
	}
	if c.SnapshotTTL <= 0 {
		c.SnapshotTTL = 30 * time.Minute
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = 500 * time.Millisecond
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
}

// Channel returns the Pub/Sub channel of ticker.
func (c Config) Channel(ticker string) string { return c.Prefix + ":" + ticker }

// SnapshotKey returns the cache key of ticker's snapshot.
func (c Config) SnapshotKey(ticker string) string { return c.Prefix + ":snapshot:" + ticker }

// Connect creates a client and pings the server.
func Connect(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("[redis] connected", "addr", cfg.Addr)
	return client, nil
}

// pendingWrite is an encoded message waiting for the writer goroutine.
// flushed, when set, is closed once every earlier write was attempted.
type pendingWrite struct {
	data     []byte
	snapshot bool
	flushed  chan struct{}
}

// Publisher is a render.Surface that mirrors one ticker to Redis. It keeps
// a local replica of the series so the cached snapshot can be refreshed on
// every bar close and after an outage.
//
// Surface calls never wait for Redis: messages are encoded on the caller's
// goroutine and queued for a single writer goroutine. When the queue is
// full or a write fails the mirror is marked stale, and the next frame
// queues a fresh snapshot so followers resynchronise.
type Publisher struct {
	client  Client
	cfg     Config
	ticker  string
	breaker *Breaker

	queue  chan pendingWrite
	done   chan struct{}
	failed atomic.Bool // set by the writer, consumed by Apply

	mu      sync.Mutex
	replica *render.Chart
	lastSeq uint64
	stale   bool
	closed  bool

	// OnPublish is called with the outcome of every frame publish (optional).
	// It runs on the writer goroutine.
	OnPublish func(err error)
}

// NewPublisher creates the surface for ticker and starts its writer.
// Close stops it.
func NewPublisher(client Client, cfg Config, ticker string, breaker *Breaker) *Publisher {
	cfg.defaults()
	if breaker == nil {
		breaker = NewBreaker(5, 10*time.Second)
	}
	p := &Publisher{
		client:  client,
		cfg:     cfg,
		ticker:  ticker,
		breaker: breaker,
		queue:   make(chan pendingWrite, cfg.QueueSize),
		done:    make(chan struct{}),
		replica: render.NewChart(0),
	}
	go p.run()
	return p
}

// Load implements render.Surface.
func (p *Publisher) Load(snap render.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.replica.Load(snap)
	p.lastSeq = 0
	p.stale = !p.enqueueSnapshot()
}

// Apply implements render.Surface. Frames that cannot be delivered are
// dropped; a snapshot containing them follows once the queue has room.
func (p *Publisher) Apply(f render.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.replica.Apply(f)
	p.lastSeq = f.Seq
	if p.failed.Swap(false) {
		p.stale = true
	}

	if !p.enqueue(pendingWrite{data: render.FrameMessage(p.ticker, f).Encode()}) {
		return
	}
	if p.stale || closesBar(f) {
		p.stale = !p.enqueueSnapshot()
	}
}

// Resize implements render.Surface. Remote views size themselves.
func (p *Publisher) Resize(int) {}

// Close stops accepting surface calls, writes what is queued and stops the
// writer.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}

// flush waits until every write queued so far was attempted.
func (p *Publisher) flush() {
	ch := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.queue <- pendingWrite{flushed: ch}
	p.mu.Unlock()
	<-ch
}

// enqueueSnapshot queues the replica as a snapshot message. Caller holds p.mu.
func (p *Publisher) enqueueSnapshot() bool {
	msg := render.SnapshotMessage(p.ticker, p.lastSeq, p.replica.Snapshot()).Encode()
	return p.enqueue(pendingWrite{data: msg, snapshot: true})
}

// enqueue hands w to the writer without blocking. Caller holds p.mu.
func (p *Publisher) enqueue(w pendingWrite) bool {
	select {
	case p.queue <- w:
		return true
	default:
		if !p.stale {
			slog.Warn("[redis] publish queue full, frames dropped until resync", "ticker", p.ticker)
		}
		p.stale = true
		return false
	}
}

// run is the writer goroutine.
func (p *Publisher) run() {
	defer close(p.done)
	for w := range p.queue {
		if w.flushed != nil {
			close(w.flushed)
			continue
		}
		var err error
		if w.snapshot {
			err = p.writeSnapshot(w.data)
		} else {
			err = p.do(func(ctx context.Context) error {
				return p.client.Publish(ctx, p.cfg.Channel(p.ticker), w.data).Err()
			})
			if p.OnPublish != nil {
				p.OnPublish(err)
			}
		}
		if err != nil && !p.failed.Swap(true) {
			slog.Warn("[redis] write failed, resyncing on next frame", "ticker", p.ticker, "error", err)
		}
	}
}

// writeSnapshot caches and announces a snapshot message.
func (p *Publisher) writeSnapshot(msg []byte) error {
	return p.do(func(ctx context.Context) error {
		if err := p.client.Set(ctx, p.cfg.SnapshotKey(p.ticker), msg, p.cfg.SnapshotTTL).Err(); err != nil {
			return err
		}
		return p.client.Publish(ctx, p.cfg.Channel(p.ticker), msg).Err()
	})
}

func (p *Publisher) do(fn func(ctx context.Context) error) error {
	return p.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.OpTimeout)
		defer cancel()
		return fn(ctx)
	})
}

func closesBar(f render.Frame) bool {
	for _, op := range f.Ops {
		if op.Kind == render.OpAppend {
			return true
		}
	}
	return false
}
