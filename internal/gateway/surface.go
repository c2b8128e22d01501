package gateway

import "livechart/internal/render"

// wsSurface forwards one engine's surface calls to the browser as
// render.Message JSON.
type wsSurface struct {
	client *Client
	ticker string
	seq    uint64
}

func (s *wsSurface) Load(snap render.Snapshot) {
	s.client.enqueue(render.SnapshotMessage(s.ticker, s.seq, snap).Encode())
}

func (s *wsSurface) Apply(f render.Frame) {
	s.seq = f.Seq
	s.client.enqueue(render.FrameMessage(s.ticker, f).Encode())
}

func (s *wsSurface) Resize(width int) {
	s.client.enqueue(render.ResizeMessage(s.ticker, width).Encode())
}
