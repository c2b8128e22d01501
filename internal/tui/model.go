package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Next key.Binding
	Prev key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Prev, k.Next, k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var keys = keyMap{
	Next: key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→", "next ticker")),
	Prev: key.NewBinding(key.WithKeys("left", "h", "shift+tab"), key.WithHelp("←", "prev ticker")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Options wires the model to whatever drives the surface.
type Options struct {
	Tickers []string

	// Switch is called when the user picks another ticker (optional). It
	// runs off the UI goroutine.
	Switch func(ticker string) error

	// Resize is called with the plot width after the terminal is resized.
	// It must eventually reach Surface.Resize.
	Resize func(width int)
}

// switchedMsg reports the outcome of a ticker switch. gen numbers the
// switch commands in the order they were issued.
type switchedMsg struct {
	ticker string
	gen    int
	err    error
}

// Model is the terminal chart application.
type Model struct {
	surface *Surface
	opts    Options

	help help.Model

	idx int
	// gen is the generation of the latest switch command; settled reports
	// whether it has completed.
	gen     int
	settled bool

	width  int
	height int
	status string
}

// NewModel creates a model drawing surface. The first ticker is shown
// first.
func NewModel(surface *Surface, opts Options) *Model {
	if opts.Resize == nil {
		opts.Resize = surface.Resize
	}
	return &Model{surface: surface, opts: opts, help: help.New()}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.surface.waitDirty()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			return m, m.cycle(1)
		case key.Matches(msg, keys.Prev):
			return m, m.cycle(-1)
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.opts.Resize(PlotWidth(msg.Width))

	case redrawMsg:
		return m, m.surface.waitDirty()

	case switchedMsg:
		if msg.gen != m.gen {
			// Switches run concurrently. An older one finishing after the
			// latest would leave its ticker on screen, so redo the latest.
			if m.settled {
				return m, m.switchTo(m.Ticker())
			}
			return m, nil
		}
		m.settled = true
		if msg.err != nil {
			m.status = fmt.Sprintf("%s: %v", msg.ticker, msg.err)
		} else {
			m.status = ""
		}
	}
	return m, nil
}

func (m *Model) cycle(step int) tea.Cmd {
	if len(m.opts.Tickers) < 2 || m.opts.Switch == nil {
		return nil
	}
	m.idx = (m.idx + step + len(m.opts.Tickers)) % len(m.opts.Tickers)
	return m.switchTo(m.Ticker())
}

func (m *Model) switchTo(ticker string) tea.Cmd {
	m.gen++
	m.settled = false
	m.status = "loading " + ticker + "..."
	gen, fn := m.gen, m.opts.Switch
	return func() tea.Msg {
		return switchedMsg{ticker: ticker, gen: gen, err: fn(ticker)}
	}
}

// Ticker returns the selected ticker.
func (m *Model) Ticker() string {
	if len(m.opts.Tickers) == 0 {
		return ""
	}
	return m.opts.Tickers[m.idx]
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}
	chart := m.surface.Chart()
	snap := chart.Visible()

	header := TitleStyle.Render("📈 " + m.Ticker())
	if n := len(snap.Price); n > 0 {
		last := snap.Price[n-1]
		chg := last.Close - last.Open
		header += "  " + ValueStyle.Render(fmt.Sprintf("%.2f", last.Close)) +
			" " + candleStyle(last.Bullish()).Render(fmt.Sprintf("%+.2f", chg)) +
			"  " + MutedStyle.Render(fmt.Sprintf("O %.2f H %.2f L %.2f V %s", last.Open, last.High, last.Low, formatVolume(last.Volume)))
	}
	if k := len(snap.SMA); k > 0 {
		header += "  " + SMAStyle.Render(fmt.Sprintf("SMA %.2f", snap.SMA[k-1].Value))
	}

	footer := m.help.View(keys)
	if m.status != "" {
		footer = MutedStyle.Render(m.status)
	}

	plotHeight := m.height - 6 // border, header, footer
	body := lipgloss.JoinVertical(lipgloss.Left, header, renderPlot(snap, plotHeight), footer)
	return PanelStyle.Width(m.width - 2).Render(strings.TrimRight(body, "\n"))
}
