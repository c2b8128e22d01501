package model

import (
	"encoding/json"
	"time"
)

// SMAPoint is one value of the moving-average line.
type SMAPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// MarshalJSON encodes the point with a chart time key.
func (p SMAPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time  ChartTime `json:"time"`
		Value float64   `json:"value"`
	}{ChartTime(p.Time), p.Value})
}

func (p *SMAPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time  ChartTime `json:"time"`
		Value float64   `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = SMAPoint{time.Time(raw.Time), raw.Value}
	return nil
}

// VolumePoint is one histogram column. Up selects the green color.
type VolumePoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
	Up    bool      `json:"up"`
}

// MarshalJSON encodes the point with a chart time key.
func (p VolumePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time  ChartTime `json:"time"`
		Value float64   `json:"value"`
		Up    bool      `json:"up"`
	}{ChartTime(p.Time), p.Value, p.Up})
}

func (p *VolumePoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Time  ChartTime `json:"time"`
		Value float64   `json:"value"`
		Up    bool      `json:"up"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = VolumePoint{time.Time(raw.Time), raw.Value, raw.Up}
	return nil
}

// Tick is one synthetic price-change event. It is consumed immediately by the
// aggregator and never stored.
type Tick struct {
	Seq      uint64  `json:"seq"`
	Delta    float64 `json:"delta"`
	Volume   float64 `json:"volume"`
	Boundary bool    `json:"boundary"` // closes the trailing bar after applying Delta
}
