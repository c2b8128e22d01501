package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the business-day time format used by daily charts.
const DateLayout = "2006-01-02"

// ChartTime is a bar time as exchanged with chart surfaces: a "YYYY-MM-DD"
// string when it falls on UTC midnight, unix seconds otherwise.
type ChartTime time.Time

// MarshalJSON implements json.Marshaler.
func (t ChartTime) MarshalJSON() ([]byte, error) {
	tt := time.Time(t).UTC()
	if tt.Hour() == 0 && tt.Minute() == 0 && tt.Second() == 0 && tt.Nanosecond() == 0 {
		return []byte(`"` + tt.Format(DateLayout) + `"`), nil
	}
	return []byte(strconv.FormatInt(tt.Unix(), 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ChartTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("chart time: missing value")
	}
	if data[0] != '"' {
		secs, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("chart time: %w", err)
		}
		*t = ChartTime(time.Unix(secs, 0).UTC())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseChartTime(s)
	if err != nil {
		return err
	}
	*t = ChartTime(parsed)
	return nil
}

// ParseChartTime parses a date, an RFC3339 timestamp or unix seconds.
func ParseChartTime(s string) (time.Time, error) {
	if ts, err := time.Parse(DateLayout, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("chart time: unrecognised value %q", s)
}
