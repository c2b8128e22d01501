package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"livechart/internal/model"
	"livechart/internal/render"
)

const (
	axisWidth  = 10 // "%9s│"
	volumeRows = 3
)

// PlotWidth is the number of columns left for bars in a panel of width cells.
func PlotWidth(panelWidth int) int {
	w := panelWidth - axisWidth - 4 // border and padding
	if w < CellsPerBar {
		w = CellsPerBar
	}
	return w
}

// priceScale maps prices to rows, top row = highest price.
type priceScale struct {
	min, max float64
	rows     int
}

func (s priceScale) row(price float64) int {
	if s.max == s.min {
		return s.rows / 2
	}
	r := int(math.Round((s.max - price) / (s.max - s.min) * float64(s.rows-1)))
	if r < 0 {
		r = 0
	}
	if r >= s.rows {
		r = s.rows - 1
	}
	return r
}

func (s priceScale) price(row int) float64 {
	if s.rows <= 1 {
		return s.min
	}
	return s.max - float64(row)/float64(s.rows-1)*(s.max-s.min)
}

// renderPlot draws candles with the SMA overlay, a volume histogram and a
// date axis. height counts every line produced.
func renderPlot(snap render.Snapshot, height int) string {
	bars := snap.Price
	if len(bars) == 0 {
		return MutedStyle.Render("Waiting for data...")
	}
	rows := height - volumeRows - 2
	if rows < 5 {
		rows = 5
	}

	sma := make(map[time.Time]float64, len(snap.SMA))
	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	for _, p := range snap.SMA {
		sma[p.Time] = p.Value
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	pad := (hi - lo) * 0.05
	scale := priceScale{min: lo - pad, max: hi + pad, rows: rows}

	var out strings.Builder
	for row := 0; row < rows; row++ {
		out.WriteString(AxisStyle.Render(fmt.Sprintf("%9.2f│", scale.price(row))))
		for _, b := range bars {
			v, ok := sma[b.Time]
			out.WriteString(cell(b, row, scale, v, ok))
			out.WriteByte(' ')
		}
		out.WriteByte('\n')
	}

	out.WriteString(renderVolume(bars, snap.Volume))

	out.WriteString(AxisStyle.Render(strings.Repeat("─", axisWidth-1) + "┴" + strings.Repeat("─", len(bars)*CellsPerBar)))
	out.WriteByte('\n')
	out.WriteString(dateAxis(bars))
	return out.String()
}

// cell is the glyph of bar b at row. The body wins over the SMA dot, the
// dot wins over the wick.
func cell(b model.Bar, row int, scale priceScale, smaValue float64, hasSMA bool) string {
	top, bottom := scale.row(math.Max(b.Open, b.Close)), scale.row(math.Min(b.Open, b.Close))
	style := candleStyle(b.Bullish())
	switch {
	case row >= top && row <= bottom:
		return style.Render("┃")
	case hasSMA && scale.row(smaValue) == row:
		return SMAStyle.Render("•")
	case row >= scale.row(b.High) && row <= scale.row(b.Low):
		return style.Render("│")
	}
	return " "
}

var volumeGlyphs = []rune(" ▁▂▃▄▅▆▇█")

func renderVolume(bars []model.Bar, vols []model.VolumePoint) string {
	maxVol := 0.0
	for _, v := range vols {
		maxVol = math.Max(maxVol, v.Value)
	}
	up := make(map[time.Time]model.VolumePoint, len(vols))
	for _, v := range vols {
		up[v.Time] = v
	}

	var out strings.Builder
	steps := len(volumeGlyphs) - 1
	for row := 0; row < volumeRows; row++ {
		label := ""
		if row == 0 {
			label = formatVolume(maxVol)
		}
		out.WriteString(AxisStyle.Render(fmt.Sprintf("%9s│", label)))
		// Rows count down from the top; level is eighths of a row.
		floor := float64((volumeRows - 1 - row) * steps)
		for _, b := range bars {
			v := up[b.Time]
			level := 0.0
			if maxVol > 0 {
				level = v.Value / maxVol * float64(volumeRows*steps)
			}
			n := int(math.Round(level - floor))
			if n < 0 {
				n = 0
			}
			if n > steps {
				n = steps
			}
			out.WriteString(candleStyle(v.Up).Render(string(volumeGlyphs[n])))
			out.WriteByte(' ')
		}
		out.WriteByte('\n')
	}
	return out.String()
}

func dateAxis(bars []model.Bar) string {
	line := []rune(strings.Repeat(" ", axisWidth+len(bars)*CellsPerBar))
	next := 0
	for i, b := range bars {
		col := axisWidth + i*CellsPerBar
		if col < next {
			continue
		}
		label := b.Time.UTC().Format("01-02")
		if b.Time.UTC().Hour() != 0 || b.Time.UTC().Minute() != 0 {
			label = b.Time.UTC().Format("15:04")
		}
		if col+len(label) > len(line) {
			break
		}
		copy(line[col:], []rune(label))
		next = col + len(label) + 2
	}
	return AxisStyle.Render(string(line))
}

func formatVolume(v float64) string {
	switch {
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	}
	return fmt.Sprintf("%.0f", v)
}
