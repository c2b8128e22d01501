package render

import (
	"testing"

	"livechart/internal/model"
)

func TestReplayer_DropsFramesBeforeSnapshot(t *testing.T) {
	chart := NewChart(600)
	r := &Replayer{Surface: chart}

	bar := model.Bar{Time: d(2), Open: 10, High: 10.5, Low: 10, Close: 10.5, Volume: 120}
	frame := func(seq uint64) Message {
		return FrameMessage("TCS", Frame{Seq: seq, Ops: []Op{
			{Kind: OpUpdate, Series: SeriesPrice, Time: d(2), Bar: bar},
		}})
	}

	if r.Handle(frame(1)) {
		t.Fatal("frame applied before any snapshot")
	}

	snap, err := DecodeMessage(SnapshotMessage("TCS", 4, seedSnapshot(2)).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Handle(snap) {
		t.Fatal("snapshot not applied")
	}

	for seq, want := range map[uint64]bool{3: false, 4: false} {
		if got := r.Handle(frame(seq)); got != want {
			t.Errorf("frame %d applied = %v, want %v", seq, got, want)
		}
	}

	m, err := DecodeMessage(frame(5).Encode())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Handle(m) {
		t.Fatal("frame 5 not applied")
	}
	if count, last := chart.Frames(); count != 1 || last != 5 {
		t.Errorf("Frames() = %d, %d", count, last)
	}
	if got := chart.Snapshot().Price[1]; got != bar {
		t.Errorf("last bar = %+v", got)
	}
}

func TestDecodeMessage_MissingPayload(t *testing.T) {
	if _, err := DecodeMessage([]byte(`{"type":"frame","ticker":"TCS"}`)); err == nil {
		t.Fatal("expected error")
	}
}
