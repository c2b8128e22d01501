// Package render defines the chart surface contract: three parallel series
// (price bars, volume histogram, SMA line) that accept "append" of a new
// element and "update" of the last one, keyed by time.
package render

import (
	"encoding/json"
	"fmt"
	"time"

	"livechart/internal/model"
)

// Series names one of the three chart series.
type Series string

const (
	SeriesPrice  Series = "price"
	SeriesVolume Series = "volume"
	SeriesSMA    Series = "sma"
)

// OpKind is the mutation applied to a series.
type OpKind string

const (
	OpUpdate OpKind = "update" // replace the last element (same time)
	OpAppend OpKind = "append" // add a new element (later time)
)

// Op is a single series mutation. Bar is set for the price series; Value for
// volume and SMA; Up carries the volume column color.
type Op struct {
	Kind   OpKind
	Series Series
	Time   time.Time
	Bar    model.Bar
	Value  float64
	Up     bool
}

// MarshalJSON encodes the op with its point in chart form.
func (o Op) MarshalJSON() ([]byte, error) {
	var point any
	switch o.Series {
	case SeriesPrice:
		point = o.Bar
	case SeriesVolume:
		point = model.VolumePoint{Time: o.Time, Value: o.Value, Up: o.Up}
	default:
		point = model.SMAPoint{Time: o.Time, Value: o.Value}
	}
	return json.Marshal(struct {
		Kind   OpKind `json:"op"`
		Series Series `json:"series"`
		Point  any    `json:"point"`
	}{o.Kind, o.Series, point})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (o *Op) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind   OpKind          `json:"op"`
		Series Series          `json:"series"`
		Point  json.RawMessage `json:"point"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op := Op{Kind: raw.Kind, Series: raw.Series}
	switch raw.Series {
	case SeriesPrice:
		if err := json.Unmarshal(raw.Point, &op.Bar); err != nil {
			return err
		}
		op.Time = op.Bar.Time
	case SeriesVolume:
		var p model.VolumePoint
		if err := json.Unmarshal(raw.Point, &p); err != nil {
			return err
		}
		op.Time, op.Value, op.Up = p.Time, p.Value, p.Up
	case SeriesSMA:
		var p model.SMAPoint
		if err := json.Unmarshal(raw.Point, &p); err != nil {
			return err
		}
		op.Time, op.Value = p.Time, p.Value
	default:
		return fmt.Errorf("render: unknown series %q", raw.Series)
	}
	*o = op
	return nil
}

// Frame is every op produced by one tick. Sinks apply a frame as a unit so no
// partially updated bar is ever observable between ticks.
type Frame struct {
	Seq uint64 `json:"seq"` // tick sequence number
	Ops []Op   `json:"ops"`
}

// Snapshot is the full initial state of the three series.
type Snapshot struct {
	Price  []model.Bar         `json:"price"`
	Volume []model.VolumePoint `json:"volume"`
	SMA    []model.SMAPoint    `json:"sma"`
}

// Surface is a push-style chart sink. Implementations own no trading data
// beyond what they are told to draw.
type Surface interface {
	// Load replaces all series with snap.
	Load(snap Snapshot)

	// Apply applies one tick's ops in order.
	Apply(f Frame)

	// Resize changes the rendering width in pixels or cells. Data is unchanged.
	Resize(width int)
}
