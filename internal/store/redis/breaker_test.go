package redis

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(max int) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	b := NewBreaker(max, time.Second)
	b.now = clk.now
	return b, clk
}

var errDown = errors.New("down")

func fail() error { return errDown }
func ok() error   { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3)

	b.Do(fail)
	b.Do(fail)
	b.Do(ok)
	b.Do(fail)
	b.Do(fail)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, success should reset the count", b.State())
	}

	if err := b.Do(fail); err != errDown {
		t.Fatalf("err = %v", err)
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	if err := b.Do(func() error { called = true; return nil }); err != ErrBreakerOpen || called {
		t.Errorf("open breaker ran fn (err=%v)", err)
	}
}

func TestBreaker_ProbeAfterCoolDown(t *testing.T) {
	b, clk := newTestBreaker(1)
	var seen []State
	b.OnStateChange = func(_, to State) { seen = append(seen, to) }

	b.Do(fail)
	clk.advance(time.Second)
	b.Do(fail)
	if b.State() != StateOpen {
		t.Fatalf("failed probe: state = %v", b.State())
	}

	clk.advance(time.Second)
	if err := b.Do(ok); err != nil {
		t.Fatal(err)
	}
	want := []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
