package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"livechart/internal/engine"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/model"
	"livechart/internal/render"
)

func TestInstrument_CountsTicksAndBars(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	e := engine.New(render.NewChart(100), ticksim.NewRand(1))
	m.Instrument(e)

	cfg := engine.DefaultConfig()
	cfg.TicksPerBar = 4
	seed := []model.HistoryBar{{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 10, High: 10, Low: 10, Close: 10}}
	if err := e.Load(seed, cfg); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if _, err := e.Step(); err != nil {
			t.Fatal(err)
		}
	}

	if got := testutil.ToFloat64(m.TicksTotal); got != 10 {
		t.Errorf("ticks = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.BarsClosed); got != 2 {
		t.Errorf("bars closed = %v, want 2", got)
	}
}

func TestHealth_DegradedWhenEnabledDependencyDown(t *testing.T) {
	h := NewHealthStatus()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("no dependencies enabled: status %d", rr.Code)
	}

	h.SetRedis(true, false)
	h.AddSessions(2)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("redis down: status %d", rr.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Sessions != 2 {
		t.Errorf("body = %+v", body)
	}
}
