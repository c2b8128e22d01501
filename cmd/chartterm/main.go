package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"livechart/config"
	"livechart/internal/engine"
	"livechart/internal/history"
	"livechart/internal/logger"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/render"
	redisstore "livechart/internal/store/redis"
	"livechart/internal/tui"
)

func main() {
	cfg := config.Load()

	ticker := flag.String("ticker", "", "ticker to chart first (default: first of TICKERS)")
	server := flag.String("server", "", "chartserver base URL to load history from, e.g. http://localhost:8080")
	follow := flag.Bool("follow", false, "follow the server's Redis mirror instead of simulating locally")
	publish := flag.Bool("publish", false, "also mirror the local engine to Redis (needs REDIS_ADDR)")
	logFile := flag.String("log", "", "write logs to this file (the terminal is taken by the chart)")
	flag.Parse()

	// The TUI owns stdout; logs go to a file or nowhere.
	out, err := openLog(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chartterm: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()
	logger.InitWriter("chartterm", logger.ParseLevel(cfg.LogLevel), out)

	tickers := cfg.Tickers
	if *ticker != "" {
		tickers = append([]string{strings.ToUpper(*ticker)}, without(tickers, strings.ToUpper(*ticker))...)
	}
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "chartterm: no tickers configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surface := tui.NewSurface()
	surface.Resize(cfg.ChartWidth)

	var opts tui.Options
	var shutdown func()
	if *follow {
		opts, shutdown, err = followMode(ctx, cfg, tickers, surface)
	} else {
		opts, shutdown, err = localMode(ctx, cfg, *server, *publish, tickers, surface)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "chartterm: %v\n", err)
		os.Exit(1)
	}
	opts.Tickers = tickers

	p := tea.NewProgram(tui.NewModel(surface, opts), tea.WithAltScreen())
	_, err = p.Run()
	cancel()
	shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chartterm: %v\n", err)
		os.Exit(1)
	}
}

// localMode runs an engine in-process. Window resizes travel through the
// controller to the surface.
func localMode(ctx context.Context, cfg *config.Config, server string, publish bool, tickers []string, surface *tui.Surface) (tui.Options, func(), error) {
	if err := cfg.Engine.Validate(); err != nil {
		return tui.Options{}, nil, err
	}
	newRand := ticksim.Seeds(cfg.RNGSeed)

	src := history.Fallback{}
	if server != "" {
		src = append(src, history.HTTPSource{BaseURL: server, Client: &http.Client{Timeout: 5 * time.Second}})
	}
	src = append(src, history.NewSynthetic(newRand()))

	factory := func(string) render.Surface { return surface }
	closePubs := func() {}
	if publish {
		if cfg.RedisAddr == "" {
			return tui.Options{}, nil, fmt.Errorf("-publish needs REDIS_ADDR")
		}
		rcfg := redisConfig(cfg)
		rdb, err := redisstore.Connect(ctx, rcfg)
		if err != nil {
			return tui.Options{}, nil, err
		}
		breaker := redisstore.NewBreaker(5, 10*time.Second)
		// Called under the controller's lock; one publisher per ticker.
		pubs := make(map[string]*redisstore.Publisher)
		factory = func(ticker string) render.Surface {
			pub, ok := pubs[ticker]
			if !ok {
				pub = redisstore.NewPublisher(rdb, rcfg, ticker, breaker)
				pubs[ticker] = pub
			}
			return render.NewMulti(surface, pub)
		}
		closePubs = func() {
			for _, pub := range pubs {
				pub.Close()
			}
			rdb.Close()
		}
	}

	view := engine.NewController(cfg.Engine, factory, newRand)
	switchTo := func(ticker string) error {
		bars, err := src.Load(ctx, ticker)
		if err != nil {
			return err
		}
		return view.Switch(ctx, ticker, bars)
	}
	shutdown := func() {
		view.Close()
		closePubs()
	}
	if err := switchTo(tickers[0]); err != nil {
		shutdown()
		return tui.Options{}, nil, err
	}
	return tui.Options{Switch: switchTo, Resize: view.Resize}, shutdown, nil
}

// followMode replays the Redis mirror of the selected ticker.
func followMode(ctx context.Context, cfg *config.Config, tickers []string, surface *tui.Surface) (tui.Options, func(), error) {
	if cfg.RedisAddr == "" {
		return tui.Options{}, nil, fmt.Errorf("-follow needs REDIS_ADDR")
	}
	rcfg := redisConfig(cfg)
	rdb, err := redisstore.Connect(ctx, rcfg)
	if err != nil {
		return tui.Options{}, nil, err
	}

	view := redisstore.NewFollowView(ctx, rdb, rcfg, surface)
	shutdown := func() {
		view.Close()
		rdb.Close()
	}
	if err := view.Switch(tickers[0]); err != nil {
		shutdown()
		return tui.Options{}, nil, err
	}
	return tui.Options{Switch: view.Switch}, shutdown, nil
}

func redisConfig(cfg *config.Config) redisstore.Config {
	return redisstore.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Prefix:   cfg.RedisChannelPrefix,
	}
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
