package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"livechart/internal/engine"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Chart engine knobs
	Engine  engine.Config
	RNGSeed int64 // 0 = time-based

	// Infrastructure
	HTTPAddr           string
	MetricsAddr        string
	SQLitePath         string
	RedisAddr          string
	RedisPassword      string
	RedisChannelPrefix string
	LogLevel           string

	// Tickers served by default (comma-separated)
	Tickers []string

	// Terminal chart width in cells before the first resize
	ChartWidth int
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is loaded first if present;
// variables already set in the environment win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("[config] loaded .env")
	}

	def := engine.DefaultConfig()
	return &Config{
		Engine: engine.Config{
			TickInterval:  getEnvDuration("TICK_INTERVAL_MS", def.TickInterval, time.Millisecond),
			StartDelay:    getEnvDuration("START_DELAY_MS", def.StartDelay, time.Millisecond),
			TicksPerBar:   getEnvInt("TICKS_PER_BAR", def.TicksPerBar),
			Volatility:    getEnvFloat("VOLATILITY", def.Volatility),
			SMAPeriod:     getEnvInt("SMA_PERIOD", def.SMAPeriod),
			MaxTickVolume: getEnvFloat("TICK_VOLUME_MAX", def.MaxTickVolume),
			SeedVolumeMin: getEnvFloat("SEED_VOLUME_MIN", def.SeedVolumeMin),
			SeedVolumeMax: getEnvFloat("SEED_VOLUME_MAX", def.SeedVolumeMax),
			BarPeriod:     getEnvPeriod("BAR_PERIOD", def.BarPeriod),
		},
		RNGSeed: int64(getEnvInt("RNG_SEED", 0)),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:        getEnv("METRICS_ADDR", ":9090"),
		SQLitePath:         getEnv("SQLITE_PATH", "data/history.db"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "chart"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		Tickers:    ParseTickers(getEnv("TICKERS", "RELIANCE,TCS,HDFCBANK,INFY,TITAN")),
		ChartWidth: getEnvInt("CHART_WIDTH", 120),
	}
}

// ParseTickers splits a comma-separated list, upper-casing and dropping blanks.
func ParseTickers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("[config] invalid int, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		slog.Warn("[config] invalid float, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, fallback, unit time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		slog.Warn("[config] invalid duration, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return time.Duration(n) * unit
}

// getEnvPeriod reads a bar period: a Go duration ("5m", "1h") or a day
// count suffixed with "d" ("1d").
func getEnvPeriod(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if strings.HasSuffix(v, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(v, "d")); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("[config] invalid bar period, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
