// Package tui draws a live chart in the terminal with Bubble Tea.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"livechart/internal/render"
)

// CellsPerBar is the number of columns one candle takes (body + gap).
const CellsPerBar = 2

// Surface is a render.Surface backed by an in-memory chart. Engine calls
// never block on the UI: they mark the surface dirty and the model redraws
// on its next wake-up.
type Surface struct {
	chart *render.Chart
	dirty chan struct{}
}

// NewSurface creates an empty terminal surface.
func NewSurface() *Surface {
	c := render.NewChart(0)
	c.SetBarSpacing(CellsPerBar)
	return &Surface{chart: c, dirty: make(chan struct{}, 1)}
}

func (s *Surface) Load(snap render.Snapshot) {
	s.chart.Load(snap)
	s.mark()
}

func (s *Surface) Apply(f render.Frame) {
	s.chart.Apply(f)
	s.mark()
}

// Resize takes the plot width in cells.
func (s *Surface) Resize(width int) {
	s.chart.Resize(width)
	s.mark()
}

// Chart exposes the backing series.
func (s *Surface) Chart() *render.Chart { return s.chart }

func (s *Surface) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// redrawMsg is delivered after the surface changed.
type redrawMsg struct{}

// waitDirty blocks until the surface changes.
func (s *Surface) waitDirty() tea.Cmd {
	return func() tea.Msg {
		<-s.dirty
		return redrawMsg{}
	}
}
