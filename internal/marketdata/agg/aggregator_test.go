package agg

import (
	"math"
	"testing"
	"time"

	"livechart/internal/marketdata/ticksim"
	"livechart/internal/model"
	"livechart/internal/series"
)

func seedStore(t *testing.T, bars ...model.Bar) *series.Store {
	t.Helper()
	s, err := series.New(bars)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func jan(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestAggregator_UpdateInPlace(t *testing.T) {
	store := seedStore(t, model.Bar{Time: jan(1), Open: 100, High: 101, Low: 99, Close: 100})
	a := New(store, 24*time.Hour)

	res := a.Apply(model.Tick{Seq: 1, Delta: 0.5, Volume: 10})
	if res.Closed() {
		t.Fatal("non-boundary tick closed the bar")
	}
	b := res.Updated
	if b.Close != 100.5 || b.High != 101 || b.Low != 99 || b.Open != 100 {
		t.Errorf("unexpected bar %+v", b)
	}
	if b.Volume != 10 {
		t.Errorf("volume = %v, want 10", b.Volume)
	}

	res = a.Apply(model.Tick{Seq: 2, Delta: 1.004, Volume: 5})
	if res.Updated.Close != 101.5 || res.Updated.High != 101.5 {
		t.Errorf("high did not follow close: %+v", res.Updated)
	}

	res = a.Apply(model.Tick{Seq: 3, Delta: -3})
	if res.Updated.Low != 98.5 {
		t.Errorf("low did not follow close: %+v", res.Updated)
	}
	if store.Len() != 1 {
		t.Errorf("store grew to %d bars", store.Len())
	}
}

func TestAggregator_Boundary(t *testing.T) {
	store := seedStore(t, model.Bar{Time: jan(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 2000})
	a := New(store, 24*time.Hour)

	res := a.Apply(model.Tick{Seq: 2, Delta: 0.25, Volume: 7, Boundary: true})
	if !res.Closed() {
		t.Fatal("boundary tick did not close the bar")
	}
	if res.Updated.Close != 100.25 || res.Updated.Volume != 2007 {
		t.Errorf("closing bar %+v", res.Updated)
	}
	n := *res.Opened
	if !n.Time.Equal(jan(2)) {
		t.Errorf("new bar time %v, want %v", n.Time, jan(2))
	}
	if n.Open != 100.25 || n.High != 100.25 || n.Low != 100.25 || n.Close != 100.25 || n.Volume != 0 {
		t.Errorf("new bar %+v", n)
	}
	if store.Len() != 2 || store.At(0).Close != 100.25 {
		t.Errorf("store not rolled: len=%d first=%+v", store.Len(), store.At(0))
	}
}

func TestAggregator_IntradayPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC)
	store := seedStore(t, model.Bar{Time: start, Open: 10, High: 10, Low: 10, Close: 10})
	a := New(store, 5*time.Minute)

	res := a.Apply(model.Tick{Boundary: true})
	if want := start.Add(5 * time.Minute); !res.Opened.Time.Equal(want) {
		t.Errorf("next time %v, want %v", res.Opened.Time, want)
	}
}

func TestAggregator_ClampsNonPositive(t *testing.T) {
	store := seedStore(t, model.Bar{Time: jan(1), Open: 0.02, High: 0.05, Low: 0.01, Close: 0.02})
	a := New(store, 0)
	clamps := 0
	a.OnClamp = func() { clamps++ }

	res := a.Apply(model.Tick{Delta: -5})
	if !res.Clamped || res.Updated.Close != MinPrice {
		t.Errorf("expected clamp to %v, got %+v", MinPrice, res)
	}
	if clamps != 1 {
		t.Errorf("OnClamp called %d times", clamps)
	}
	if !res.Updated.Valid() {
		t.Errorf("clamped bar invalid: %+v", res.Updated)
	}
}

func TestAggregator_InvariantUnderRandomTicks(t *testing.T) {
	store := seedStore(t, model.Bar{Time: jan(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000})
	a := New(store, 24*time.Hour)
	sim := ticksim.New(ticksim.Config{TicksPerBar: 7, Volatility: 0.05}, ticksim.NewRand(3))

	for i := 0; i < 2000; i++ {
		prevVol := store.Last().Volume
		res := a.Apply(sim.Next(store.Last().Close))
		if !res.Updated.Valid() {
			t.Fatalf("tick %d: invalid bar %+v", i, res.Updated)
		}
		if res.Updated.Volume < prevVol {
			t.Fatalf("tick %d: volume decreased %v -> %v", i, prevVol, res.Updated.Volume)
		}
		if res.Updated.Close != math.Round(res.Updated.Close*100)/100 {
			t.Fatalf("tick %d: close not rounded: %v", i, res.Updated.Close)
		}
	}
	if store.Len() != 1+2000/7 {
		t.Errorf("store len = %d, want %d", store.Len(), 1+2000/7)
	}
	for i := 1; i < store.Len(); i++ {
		if !store.At(i).Time.After(store.At(i - 1).Time) {
			t.Fatalf("bar %d not after bar %d", i, i-1)
		}
	}
}
