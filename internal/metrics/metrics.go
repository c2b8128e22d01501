package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livechart/internal/engine"
	"livechart/internal/marketdata/agg"
)

// Metrics holds all Prometheus metrics for the chart engine.
type Metrics struct {
	TicksTotal     prometheus.Counter
	BarsClosed     prometheus.Counter
	PriceClamps    prometheus.Counter
	StepDur        prometheus.Histogram
	ActiveEngines  prometheus.Gauge
	EngineStarts   *prometheus.CounterVec // labels: result=ok|error
	WSClients      prometheus.Gauge
	WSDropped      prometheus.Counter
	RedisPublishes *prometheus.CounterVec // labels: result=ok|error
	HistoryLoadDur *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechart_ticks_total",
			Help: "Total simulated ticks folded into trailing bars",
		}),
		BarsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechart_bars_closed_total",
			Help: "Total trailing bars closed at a boundary",
		}),
		PriceClamps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechart_price_clamps_total",
			Help: "Simulated closes floored to the minimum price",
		}),
		StepDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "livechart_step_duration_seconds",
			Help:    "Time to fold one tick and emit its frame",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),
		ActiveEngines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_active_engines",
			Help: "Chart engines currently running",
		}),
		EngineStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechart_engine_starts_total",
			Help: "Engine start attempts by result",
		}, []string{"result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livechart_ws_clients",
			Help: "Connected WebSocket chart views",
		}),
		WSDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livechart_ws_slow_clients_total",
			Help: "WebSocket views disconnected because their send buffer was full",
		}),
		RedisPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livechart_redis_publishes_total",
			Help: "Frames mirrored to Redis by result",
		}, []string{"result"}),
		HistoryLoadDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "livechart_history_load_duration_seconds",
			Help:    "History source latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.BarsClosed,
		m.PriceClamps,
		m.StepDur,
		m.ActiveEngines,
		m.EngineStarts,
		m.WSClients,
		m.WSDropped,
		m.RedisPublishes,
		m.HistoryLoadDur,
	)

	return m
}

// Instrument attaches the tick and clamp hooks to an engine before it starts.
func (m *Metrics) Instrument(e *engine.Engine) {
	e.OnStep = func(res agg.Result, elapsed time.Duration) {
		m.TicksTotal.Inc()
		if res.Closed() {
			m.BarsClosed.Inc()
		}
		m.StepDur.Observe(elapsed.Seconds())
	}
	e.OnClamp = m.PriceClamps.Inc
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	LastFrameTime  time.Time `json:"last_frame_time"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	Sessions       int       `json:"sessions"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetLastFrameTime(t time.Time) {
	h.mu.Lock()
	h.LastFrameTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedis(enabled, connected bool) {
	h.mu.Lock()
	h.RedisEnabled = enabled
	h.RedisConnected = connected
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLite(enabled, ok bool) {
	h.mu.Lock()
	h.SQLiteEnabled = enabled
	h.SQLiteOK = ok
	h.mu.Unlock()
}

func (h *HealthStatus) AddSessions(delta int) {
	h.mu.Lock()
	h.Sessions += delta
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Optional dependencies only degrade health when enabled
	overallStatus := "healthy"
	httpCode := http.StatusOK
	if (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	frameAge := ""
	if !h.LastFrameTime.IsZero() {
		frameAge = time.Since(h.LastFrameTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		Sessions        int     `json:"sessions"`
		FrameAge        string  `json:"frame_age"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteEnabled   bool    `json:"sqlite_enabled"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		Sessions:        h.Sessions,
		FrameAge:        frameAge,
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteEnabled:   h.SQLiteEnabled,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server over the given gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("[metrics] server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("[metrics] server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
