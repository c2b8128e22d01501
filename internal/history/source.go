package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"livechart/internal/model"
)

// ErrNotFound is returned by a Source that holds no bars for a ticker.
var ErrNotFound = errors.New("history: ticker not found")

// Source loads the bar history of a ticker.
type Source interface {
	Load(ctx context.Context, ticker string) ([]model.HistoryBar, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ticker string) ([]model.HistoryBar, error)

func (f SourceFunc) Load(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
	return f(ctx, ticker)
}

// Fallback tries each source in order and returns the first non-empty,
// valid history.
type Fallback []Source

func (f Fallback) Load(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
	var errs []error
	for i, src := range f {
		bars, err := src.Load(ctx, ticker)
		if err == nil {
			err = Validate(bars)
		}
		if err == nil {
			return bars, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("[history] source failed, falling back", "ticker", ticker, "source", i, "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("history %s: %w", ticker, errors.Join(errs...))
}

// Decode reads a JSON array of bars as served by the chart-data endpoint.
// The "value" field is ignored.
func Decode(r io.Reader) ([]model.HistoryBar, error) {
	var bars []model.HistoryBar
	if err := json.NewDecoder(r).Decode(&bars); err != nil {
		return nil, fmt.Errorf("history decode: %w", err)
	}
	return bars, nil
}

// HTTPSource fetches history from a chart-data endpoint
// ({BaseURL}/api/chart-data/{ticker}).
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (s HTTPSource) Load(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
	u := strings.TrimRight(s.BaseURL, "/") + "/api/chart-data/" + url.PathEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("history fetch: status %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}

// Rand is the uniform [0,1) source used by Synthetic.
type Rand interface {
	Float64() float64
}

// Synthetic generates a daily random walk for any ticker. It is the
// fallback when no stored history exists. Generate may be called from
// several goroutines; draws from Rand are serialized.
type Synthetic struct {
	Days int
	// BasePrice maps a ticker to its starting price; DefaultBase otherwise.
	BasePrice   map[string]float64
	DefaultBase float64
	Rand        Rand
	Now         func() time.Time

	mu sync.Mutex // guards Rand
}

// NewSynthetic returns the default 60-day generator (base 1500, TITAN 3400).
func NewSynthetic(rng Rand) *Synthetic {
	return &Synthetic{
		Days:        60,
		BasePrice:   map[string]float64{"TITAN": 3400},
		DefaultBase: 1500,
		Rand:        rng,
		Now:         time.Now,
	}
}

func (s *Synthetic) Load(ctx context.Context, ticker string) ([]model.HistoryBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Generate(ticker), nil
}

// Generate builds Days bars ending the day before Now. Each bar opens at
// the previous close, moves by U(-20,25) and gets wicks of up to 15.
// Volume is left unset.
func (s *Synthetic) Generate(ticker string) []model.HistoryBar {
	base, ok := s.BasePrice[strings.ToUpper(ticker)]
	if !ok {
		base = s.DefaultBase
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -s.Days)

	bars := make([]model.HistoryBar, 0, s.Days)
	price := base
	for i := 0; i < s.Days; i++ {
		open := round2(price)
		closePrice := round2(price + s.uniform(-20, 25))
		if closePrice < minPrice {
			closePrice = minPrice
		}
		high := round2(math.Max(open, closePrice) + s.uniform(0, 15))
		low := round2(math.Min(open, closePrice) - s.uniform(0, 15))
		if low < minPrice {
			low = minPrice
		}
		bars = append(bars, model.HistoryBar{
			Time:  day,
			Open:  open,
			High:  high,
			Low:   low,
			Close: closePrice,
		})
		price = closePrice
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func (s *Synthetic) uniform(lo, hi float64) float64 {
	return lo + s.Rand.Float64()*(hi-lo)
}

const minPrice = 0.01

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
