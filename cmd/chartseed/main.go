package main

import (
	"context"
	"flag"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livechart/config"
	"livechart/internal/history"
	"livechart/internal/logger"
	"livechart/internal/marketdata/ticksim"
	sqlitestore "livechart/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger.Init("chartseed", logger.ParseLevel(cfg.LogLevel))

	days := flag.Int("days", 60, "number of daily bars per ticker")
	withVolume := flag.Bool("volume", false, "store seeded volumes instead of leaving them to the engine")
	flag.Parse()

	tickers := cfg.Tickers
	if flag.NArg() > 0 {
		tickers = config.ParseTickers(strings.Join(flag.Args(), ","))
	}

	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	w, err := sqlitestore.NewWriter(cfg.SQLitePath)
	if err != nil {
		slog.Error("[chartseed] sqlite init failed", "error", err)
		os.Exit(1)
	}
	defer w.Close()

	rng := ticksim.Seeds(cfg.RNGSeed)()
	gen := history.NewSynthetic(rng)
	gen.Days = *days

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for _, ticker := range tickers {
		bars := gen.Generate(ticker)
		if *withVolume {
			span := cfg.Engine.SeedVolumeMax - cfg.Engine.SeedVolumeMin
			for i := range bars {
				v := math.Floor(rng.Float64()*span + cfg.Engine.SeedVolumeMin)
				bars[i].Volume = &v
			}
		}
		if err := w.WriteBars(ctx, ticker, bars); err != nil {
			slog.Error("[chartseed] write failed", "ticker", ticker, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("[chartseed] done", "tickers", len(tickers), "path", cfg.SQLitePath)
}

