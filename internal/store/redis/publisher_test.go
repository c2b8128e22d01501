package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"livechart/internal/engine"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/model"
	"livechart/internal/render"
)

type published struct {
	channel string
	payload []byte
}

type fakeClient struct {
	mu        sync.Mutex
	down      bool
	published []published
	sets      map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{sets: make(map[string][]byte)}
}

func (c *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return goredis.NewIntResult(0, errors.New("connection refused"))
	}
	c.published = append(c.published, published{channel, message.([]byte)})
	return goredis.NewIntResult(1, nil)
}

func (c *fakeClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *goredis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return goredis.NewStatusResult("", errors.New("connection refused"))
	}
	c.sets[key] = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func history(n int) []model.HistoryBar {
	bars := make([]model.HistoryBar, n)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.HistoryBar{Time: day.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100}
	}
	return bars
}

func TestPublisher_FollowerMirrorsEngine(t *testing.T) {
	client := newFakeClient()
	pub := NewPublisher(client, Config{Prefix: "chart"}, "TCS", nil)
	defer pub.Close()

	cfg := engine.DefaultConfig()
	cfg.TicksPerBar = 5
	cfg.SMAPeriod = 3
	e := engine.New(pub, ticksim.NewRand(3))
	if err := e.Load(history(10), cfg); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 12; i++ {
		if _, err := e.Step(); err != nil {
			t.Fatal(err)
		}
	}
	pub.flush()

	if _, ok := client.sets["chart:snapshot:TCS"]; !ok {
		t.Fatal("snapshot not cached")
	}

	local := render.NewChart(600)
	f := NewFollower(nil, Config{Prefix: "chart"}, "TCS", local)
	for _, p := range client.published {
		if p.channel != "chart:TCS" {
			t.Fatalf("published on %q", p.channel)
		}
		f.handle(p.payload)
	}

	if errs := local.Errors(); len(errs) != 0 {
		t.Fatalf("follower errors: %v", errs)
	}
	want := e.Bars()
	got := local.Snapshot().Price
	if len(got) != len(want) {
		t.Fatalf("follower has %d bars, engine %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Time.Equal(want[i].Time) || got[i].Close != want[i].Close || got[i].Volume != want[i].Volume {
			t.Fatalf("bar %d: follower %+v, engine %+v", i, got[i], want[i])
		}
	}
}

func TestPublisher_ResyncsAfterOutage(t *testing.T) {
	client := newFakeClient()
	var failures int
	pub := NewPublisher(client, Config{}, "INFY", NewBreaker(100, time.Second))
	defer pub.Close()
	pub.OnPublish = func(err error) {
		if err != nil {
			failures++
		}
	}

	cfg := engine.DefaultConfig()
	e := engine.New(pub, ticksim.NewRand(9))
	if err := e.Load(history(20), cfg); err != nil {
		t.Fatal(err)
	}

	client.down = true
	for i := 0; i < 3; i++ {
		e.Step()
	}
	pub.flush()
	if failures != 3 {
		t.Fatalf("failures = %d, want 3", failures)
	}

	client.down = false
	client.published = nil
	e.Step()
	pub.flush()

	// Frame 4 and then a fresh snapshot that already contains it.
	if len(client.published) != 2 {
		t.Fatalf("published %d messages after recovery, want 2", len(client.published))
	}
	m, err := render.DecodeMessage(client.published[1].payload)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != render.MessageSnapshot || m.Seq != 4 {
		t.Errorf("resync message = %s seq %d", m.Type, m.Seq)
	}
	if got := m.Snapshot.Price[len(m.Snapshot.Price)-1].Close; got != e.Bars()[len(e.Bars())-1].Close {
		t.Errorf("snapshot close = %v", got)
	}
}

// blockingClient holds every call until release is closed.
type blockingClient struct {
	release chan struct{}
	*fakeClient
}

func (c blockingClient) wait(ctx context.Context) error {
	select {
	case <-c.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c blockingClient) Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd {
	if err := c.wait(ctx); err != nil {
		return goredis.NewIntResult(0, err)
	}
	return c.fakeClient.Publish(ctx, channel, message)
}

func (c blockingClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *goredis.StatusCmd {
	if err := c.wait(ctx); err != nil {
		return goredis.NewStatusResult("", err)
	}
	return c.fakeClient.Set(ctx, key, value, ttl)
}

func TestPublisher_SlowRedisDoesNotBlockTicks(t *testing.T) {
	client := blockingClient{release: make(chan struct{}), fakeClient: newFakeClient()}
	pub := NewPublisher(client, Config{OpTimeout: time.Minute, QueueSize: 2}, "TCS", nil)
	defer pub.Close()

	local := render.NewChart(600)
	cfg := engine.DefaultConfig()
	cfg.TicksPerBar = 2
	e := engine.New(render.NewMulti(local, pub), ticksim.NewRand(5))
	if err := e.Load(history(20), cfg); err != nil {
		t.Fatal(err)
	}

	stepped := make(chan error, 1)
	go func() {
		for i := 0; i < 10; i++ {
			start := time.Now()
			if _, err := e.Step(); err != nil {
				stepped <- err
				return
			}
			if d := time.Since(start); d > 100*time.Millisecond {
				stepped <- fmt.Errorf("step %d took %v", i+1, d)
				return
			}
		}
		stepped <- nil
	}()
	select {
	case err := <-stepped:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Step blocked on Redis")
	}
	if n, _ := local.Frames(); n != 10 {
		t.Fatalf("local surface saw %d frames, want 10", n)
	}

	// The queue overflowed; once Redis drains, the next frame resyncs.
	close(client.release)
	pub.flush()
	e.Step()
	pub.flush()

	client.mu.Lock()
	last := client.published[len(client.published)-1].payload
	client.mu.Unlock()
	m, err := render.DecodeMessage(last)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != render.MessageSnapshot || m.Seq != 11 {
		t.Fatalf("last message = %s seq %d, want snapshot seq 11", m.Type, m.Seq)
	}
	if got, want := len(m.Snapshot.Price), len(e.Bars()); got != want {
		t.Errorf("snapshot has %d bars, engine %d", got, want)
	}
}
