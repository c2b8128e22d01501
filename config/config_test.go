package config

import (
	"reflect"
	"testing"
	"time"

	"livechart/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"TICK_INTERVAL_MS", "TICKS_PER_BAR", "VOLATILITY", "SMA_PERIOD", "BAR_PERIOD", "TICKERS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Engine != engine.DefaultConfig() {
		t.Errorf("engine config %+v, want defaults", cfg.Engine)
	}
	if err := cfg.Engine.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
	if len(cfg.Tickers) == 0 {
		t.Error("expected default tickers")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TICK_INTERVAL_MS", "50")
	t.Setenv("TICKS_PER_BAR", "10")
	t.Setenv("VOLATILITY", "0.01")
	t.Setenv("SMA_PERIOD", "20")
	t.Setenv("BAR_PERIOD", "5m")
	t.Setenv("RNG_SEED", "7")
	t.Setenv("TICKERS", " tcs, ,infy ")

	cfg := Load()
	e := cfg.Engine
	if e.TickInterval != 50*time.Millisecond || e.TicksPerBar != 10 || e.Volatility != 0.01 || e.SMAPeriod != 20 {
		t.Errorf("overrides not applied: %+v", e)
	}
	if e.BarPeriod != 5*time.Minute {
		t.Errorf("bar period = %v", e.BarPeriod)
	}
	if cfg.RNGSeed != 7 {
		t.Errorf("seed = %d", cfg.RNGSeed)
	}
	if !reflect.DeepEqual(cfg.Tickers, []string{"TCS", "INFY"}) {
		t.Errorf("tickers = %v", cfg.Tickers)
	}
}

func TestLoad_InvalidFallsBack(t *testing.T) {
	t.Setenv("TICKS_PER_BAR", "lots")
	t.Setenv("VOLATILITY", "high")
	t.Setenv("BAR_PERIOD", "fortnight")
	cfg := Load()
	def := engine.DefaultConfig()
	if cfg.Engine.TicksPerBar != def.TicksPerBar || cfg.Engine.Volatility != def.Volatility || cfg.Engine.BarPeriod != def.BarPeriod {
		t.Errorf("invalid values not replaced by defaults: %+v", cfg.Engine)
	}
}

func TestGetEnvPeriod_Days(t *testing.T) {
	t.Setenv("BAR_PERIOD", "2d")
	if got := getEnvPeriod("BAR_PERIOD", time.Hour); got != 48*time.Hour {
		t.Errorf("got %v", got)
	}
}
