package model

import (
	"encoding/json"
	"time"
)

// Bar is one OHLCV record for a fixed time period.
// Prices are decimal rupees rounded to 2 places by the aggregator.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether low <= min(open,close) <= max(open,close) <= high
// and volume is non-negative.
func (b *Bar) Valid() bool {
	if b.Volume < 0 {
		return false
	}
	lo, hi := b.Open, b.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return b.Low <= lo && hi <= b.High
}

// Bullish returns true when the bar closed at or above its open.
func (b *Bar) Bullish() bool {
	return b.Close >= b.Open
}

// MarshalJSON encodes the bar with a chart time key.
func (b Bar) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time   ChartTime `json:"time"`
		Open   float64   `json:"open"`
		High   float64   `json:"high"`
		Low    float64   `json:"low"`
		Close  float64   `json:"close"`
		Volume float64   `json:"volume"`
	}{ChartTime(b.Time), b.Open, b.High, b.Low, b.Close, b.Volume})
}

// UnmarshalJSON decodes the chart form written by MarshalJSON.
func (b *Bar) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time   ChartTime `json:"time"`
		Open   float64   `json:"open"`
		High   float64   `json:"high"`
		Low    float64   `json:"low"`
		Close  float64   `json:"close"`
		Volume float64   `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bar{time.Time(raw.Time), raw.Open, raw.High, raw.Low, raw.Close, raw.Volume}
	return nil
}

// HistoryBar is a bar as supplied by a history source. Volume is optional;
// a nil volume is seeded by the engine.
type HistoryBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume *float64  `json:"volume,omitempty"`
}

// Bar converts to a Bar using vol when no volume was supplied.
func (h *HistoryBar) Bar(vol float64) Bar {
	if h.Volume != nil {
		vol = *h.Volume
	}
	return Bar{
		Time:   h.Time,
		Open:   h.Open,
		High:   h.High,
		Low:    h.Low,
		Close:  h.Close,
		Volume: vol,
	}
}

// MarshalJSON encodes the history bar in the chart-data shape, with "value"
// mirroring the close for line-mode charts.
func (h HistoryBar) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time   ChartTime `json:"time"`
		Open   float64   `json:"open"`
		High   float64   `json:"high"`
		Low    float64   `json:"low"`
		Close  float64   `json:"close"`
		Value  float64   `json:"value"`
		Volume *float64  `json:"volume,omitempty"`
	}{ChartTime(h.Time), h.Open, h.High, h.Low, h.Close, h.Close, h.Volume})
}

// UnmarshalJSON accepts "time" as a YYYY-MM-DD string, an RFC3339 string or
// unix seconds.
func (h *HistoryBar) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time   ChartTime `json:"time"`
		Open   float64   `json:"open"`
		High   float64   `json:"high"`
		Low    float64   `json:"low"`
		Close  float64   `json:"close"`
		Volume *float64  `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = HistoryBar{
		Time:   time.Time(raw.Time),
		Open:   raw.Open,
		High:   raw.High,
		Low:    raw.Low,
		Close:  raw.Close,
		Volume: raw.Volume,
	}
	return nil
}
