// Package gateway serves live charts to browsers over WebSocket. Every
// connection is one chart view: it owns a Controller whose engine draws on
// a surface that forwards frames down that connection.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"livechart/internal/engine"
	"livechart/internal/history"
	"livechart/internal/logger"
	"livechart/internal/marketdata/agg"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/metrics"
)

// TickerCatalog lists tickers with stored history.
type TickerCatalog interface {
	Tickers(ctx context.Context) ([]string, error)
}

// Options configures a Hub.
type Options struct {
	Engine  engine.Config
	Source  history.Source
	NewRand func() ticksim.Rand

	// Tickers lists the subjects advertised by /api/tickers.
	Tickers []string

	// Catalog adds stored tickers to /api/tickers (optional).
	Catalog TickerCatalog

	// SendBuffer is the per-connection queue of outgoing messages. A view
	// that falls this far behind is disconnected.
	SendBuffer int

	Metrics *metrics.Metrics      // optional
	Health  *metrics.HealthStatus // optional
}

func (o *Options) defaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.NewRand == nil {
		o.NewRand = func() ticksim.Rand { return ticksim.NewRand(0) }
	}
}

// Hub tracks the connected views.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	clients map[*Client]bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewHub creates a hub. Cancelling ctx stops every view's engine.
func NewHub(ctx context.Context, opts Options) *Hub {
	opts.defaults()
	ctx, cancel := context.WithCancel(ctx)
	return &Hub{
		opts:    opts,
		clients: make(map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// HandleWSRequest registers an upgraded connection as a new view.
func (h *Hub) HandleWSRequest(conn *websocket.Conn) *Client {
	id := logger.NewSessionID()
	c := &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
		hub:  h,
		ctx:  logger.WithSession(h.ctx, id),
	}
	c.view = engine.NewController(h.opts.Engine, c.surfaceFor, h.opts.NewRand)
	c.view.Configure = h.configure

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.opts.Metrics != nil {
		h.opts.Metrics.WSClients.Inc()
	}
	if h.opts.Health != nil {
		h.opts.Health.AddSessions(1)
	}
	slog.Info("[gateway] ws client connected", "session", id, "clients", count)

	go c.writePump()
	go c.readPump()
	return c
}

// configure instruments every engine a view starts.
func (h *Hub) configure(subject string, e *engine.Engine) {
	if m := h.opts.Metrics; m != nil {
		m.Instrument(e)
	}
	if hs := h.opts.Health; hs != nil {
		prev := e.OnStep
		e.OnStep = func(res agg.Result, elapsed time.Duration) {
			if prev != nil {
				prev(res, elapsed)
			}
			hs.SetLastFrameTime(time.Now())
		}
	}
}

// RemoveClient stops the view's engine and releases its queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}

	c.stopView()
	close(c.send)

	if h.opts.Metrics != nil {
		h.opts.Metrics.WSClients.Dec()
	}
	if h.opts.Health != nil {
		h.opts.Health.AddSessions(-1)
	}
}

// ClientCount returns the number of connected views.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every view.
func (h *Hub) Close() {
	h.cancel()
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.kick("server shutdown")
	}
}
