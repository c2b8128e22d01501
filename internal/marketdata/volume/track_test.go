package volume

import (
	"testing"
	"time"

	"livechart/internal/model"
)

func TestTrack_Accumulates(t *testing.T) {
	tr := NewTrack(1500, 0)
	tr.Add(10)
	tr.Add(0)
	tr.Add(-5) // ignored
	if got := tr.Add(40); got != 1550 {
		t.Errorf("Current = %v, want 1550", got)
	}
	if got := tr.Reset(); got != 0 {
		t.Errorf("Reset = %v, want 0", got)
	}
}

func TestPoint_Color(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	up := Point(model.Bar{Time: ts, Open: 10, Close: 10, Volume: 3})
	if !up.Up || up.Value != 3 {
		t.Errorf("flat bar should be green: %+v", up)
	}
	down := Point(model.Bar{Time: ts, Open: 10, Close: 9.99})
	if down.Up {
		t.Errorf("falling bar should be red: %+v", down)
	}
}
