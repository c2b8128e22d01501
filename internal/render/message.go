package render

import (
	"encoding/json"
	"fmt"
)

// MessageType tags a Message on the wire.
type MessageType string

const (
	MessageSnapshot MessageType = "snapshot"
	MessageFrame    MessageType = "frame"
	MessageResize   MessageType = "resize"
	MessageError    MessageType = "error"
)

// Message is the envelope used to ship surface calls to remote charts
// (WebSocket views, Redis followers). Seq on a snapshot is the sequence of
// the last frame folded into it; followers drop frames at or below it.
type Message struct {
	Type     MessageType `json:"type"`
	Ticker   string      `json:"ticker"`
	Seq      uint64      `json:"seq"`
	Snapshot *Snapshot   `json:"snapshot,omitempty"`
	Frame    *Frame      `json:"frame,omitempty"`
	Width    int         `json:"width,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// SnapshotMessage wraps a snapshot taken after frame seq.
func SnapshotMessage(ticker string, seq uint64, snap Snapshot) Message {
	return Message{Type: MessageSnapshot, Ticker: ticker, Seq: seq, Snapshot: &snap}
}

// FrameMessage wraps a frame.
func FrameMessage(ticker string, f Frame) Message {
	return Message{Type: MessageFrame, Ticker: ticker, Seq: f.Seq, Frame: &f}
}

// ResizeMessage acknowledges a container resize.
func ResizeMessage(ticker string, width int) Message {
	return Message{Type: MessageResize, Ticker: ticker, Width: width}
}

// Encode marshals m.
func (m Message) Encode() []byte {
	b, err := json.Marshal(m)
	if err != nil {
		// Every field has a total encoding.
		panic(fmt.Sprintf("render: encode message: %v", err))
	}
	return b
}

// DecodeMessage parses a wire message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("render: decode message: %w", err)
	}
	switch m.Type {
	case MessageSnapshot:
		if m.Snapshot == nil {
			return Message{}, fmt.Errorf("render: snapshot message without payload")
		}
	case MessageFrame:
		if m.Frame == nil {
			return Message{}, fmt.Errorf("render: frame message without payload")
		}
	}
	return m, nil
}

// Replayer applies a remote message stream to a local surface, dropping
// frames already contained in the last snapshot.
type Replayer struct {
	Surface Surface
	lastSeq uint64
	loaded  bool
}

// Handle applies m and reports whether it reached the surface.
func (r *Replayer) Handle(m Message) bool {
	switch m.Type {
	case MessageSnapshot:
		r.Surface.Load(*m.Snapshot)
		r.lastSeq = m.Seq
		r.loaded = true
		return true
	case MessageFrame:
		if !r.loaded || m.Frame.Seq <= r.lastSeq {
			return false
		}
		r.Surface.Apply(*m.Frame)
		r.lastSeq = m.Frame.Seq
		return true
	case MessageResize:
		r.Surface.Resize(m.Width)
		return true
	}
	return false
}
