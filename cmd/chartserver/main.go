package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"livechart/config"
	"livechart/internal/engine"
	"livechart/internal/gateway"
	"livechart/internal/history"
	"livechart/internal/logger"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/metrics"
	"livechart/internal/model"
	"livechart/internal/render"
	redisstore "livechart/internal/store/redis"
	sqlitestore "livechart/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger.Init("chartserver", logger.ParseLevel(cfg.LogLevel))
	slog.Info("[chartserver] starting...")

	if err := cfg.Engine.Validate(); err != nil {
		slog.Error("[chartserver] invalid engine config", "error", err)
		os.Exit(1)
	}
	processStart := time.Now()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer, health)
	metricsSrv.Start()

	newRand := ticksim.Seeds(cfg.RNGSeed)

	// ---- History: SQLite first, synthetic walk as fallback ----
	sources := history.Fallback{}
	var sqlReader *sqlitestore.Reader
	if cfg.SQLitePath != "" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
		r, err := sqlitestore.NewReader(cfg.SQLitePath)
		if err != nil {
			slog.Warn("[chartserver] sqlite unavailable, using synthetic history", "error", err)
			health.SetSQLite(true, false)
		} else {
			sqlReader = r
			defer sqlReader.Close()
			health.SetSQLite(true, true)
			sources = append(sources, timed(prom, "sqlite", sqlReader))
		}
	}
	sources = append(sources, timed(prom, "synthetic", history.NewSynthetic(newRand())))

	// ---- Redis mirror: one engine per ticker, followed by chartterm ----
	var rdb *goredis.Client
	var mirrors []mirror
	if cfg.RedisAddr != "" {
		rcfg := redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Prefix:   cfg.RedisChannelPrefix,
		}
		client, err := redisstore.Connect(ctx, rcfg)
		if err != nil {
			slog.Warn("[chartserver] redis init failed, continuing without mirror", "error", err)
			health.SetRedis(true, false)
		} else {
			rdb = client
			defer rdb.Close()
			health.SetRedis(true, true)
			mirrors = startMirrors(ctx, cfg, rcfg, rdb, sources, newRand, prom)
		}
	}

	health.StartLivenessChecker(ctx, rdb, sqlDBOf(sqlReader), 10*time.Second)

	// ---- WebSocket chart views ----
	hubOpts := gateway.Options{
		Engine:  cfg.Engine,
		Source:  sources,
		NewRand: newRand,
		Tickers: cfg.Tickers,
		Metrics: prom,
		Health:  health,
	}
	if sqlReader != nil {
		hubOpts.Catalog = sqlReader
	}
	hub := gateway.NewHub(ctx, hubOpts)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, processStart)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	go func() {
		slog.Info("[chartserver] listening", "addr", cfg.HTTPAddr, "tickers", cfg.Tickers)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("[chartserver] http server error", "error", err)
			os.Exit(1)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-sigCh
	slog.Info("[chartserver] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	hub.Close()
	closeMirrors(mirrors, prom)
	metricsSrv.Stop(shutdownCtx)

	slog.Info("[chartserver] shutdown complete.")
}

// mirror is an engine drawing on a Redis publisher.
type mirror struct {
	view *engine.Controller
	pub  *redisstore.Publisher
}

// startMirrors runs one engine per configured ticker drawing on a Redis
// publisher.
func startMirrors(ctx context.Context, cfg *config.Config, rcfg redisstore.Config, rdb redisstore.Client,
	src history.Source, newRand func() ticksim.Rand, prom *metrics.Metrics) []mirror {

	breaker := redisstore.NewBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to redisstore.State) {
		slog.Warn("[chartserver] redis breaker", "from", from, "to", to)
	}

	var out []mirror
	for _, ticker := range cfg.Tickers {
		pub := redisstore.NewPublisher(rdb, rcfg, ticker, breaker)
		pub.OnPublish = func(err error) {
			result := "ok"
			if err != nil {
				result = "error"
			}
			prom.RedisPublishes.WithLabelValues(result).Inc()
		}

		ctrl := engine.NewController(cfg.Engine, func(string) render.Surface { return pub }, newRand)
		ctrl.Configure = func(_ string, e *engine.Engine) { prom.Instrument(e) }

		bars, err := src.Load(ctx, ticker)
		if err == nil {
			err = ctrl.Switch(ctx, ticker, bars)
		}
		if err != nil {
			pub.Close()
			prom.EngineStarts.WithLabelValues("error").Inc()
			slog.Warn("[chartserver] mirror not started", "ticker", ticker, "error", err)
			continue
		}
		prom.EngineStarts.WithLabelValues("ok").Inc()
		prom.ActiveEngines.Inc()
		out = append(out, mirror{view: ctrl, pub: pub})
		slog.Info("[chartserver] mirroring to redis", "ticker", ticker, "channel", rcfg.Channel(ticker))
	}
	return out
}

// closeMirrors stops the engines and drains their publishers.
func closeMirrors(mirrors []mirror, prom *metrics.Metrics) {
	for _, m := range mirrors {
		m.view.Close()
		m.pub.Close()
		prom.ActiveEngines.Dec()
	}
}

// timed records the latency of a history source.
func timed(prom *metrics.Metrics, name string, src history.Source) history.Source {
	return history.SourceFunc(func(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
		start := time.Now()
		bars, err := src.Load(ctx, ticker)
		prom.HistoryLoadDur.WithLabelValues(name).Observe(time.Since(start).Seconds())
		return bars, err
	})
}

func sqlDBOf(r *sqlitestore.Reader) *sql.DB {
	if r == nil {
		return nil
	}
	return r.DB()
}
