package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"livechart/internal/engine"
	"livechart/internal/render"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxMessage = 4096
)

// Client is one WebSocket chart view.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	ctx  context.Context
	view *engine.Controller

	mu     sync.Mutex
	active bool // an engine is running

	kickOnce sync.Once
}

// ClientMsg is a message sent by the browser.
//
//	{"type":"subscribe","ticker":"TCS","width":800}
//	{"type":"resize","width":640}
//	{"type":"ping","ping":1712345678901}
type ClientMsg struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker,omitempty"`
	Width  int    `json:"width,omitempty"`
	Ping   int64  `json:"ping,omitempty"`
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		slog.Info("[gateway] ws client disconnected", "session", c.id)
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", "invalid message: "+err.Error())
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.handleSubscribe(msg)
		case "resize":
			if msg.Width > 0 {
				c.view.Resize(msg.Width)
			}
		case "ping":
			pong, _ := json.Marshal(map[string]any{
				"type":      "pong",
				"ping":      msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.enqueue(pong)
		default:
			c.sendError("", "unknown message type "+msg.Type)
		}
	}
}

// handleSubscribe switches the view to a new ticker. The previous engine is
// stopped before the history of the new one is loaded.
func (c *Client) handleSubscribe(msg ClientMsg) {
	ticker := strings.ToUpper(strings.TrimSpace(msg.Ticker))
	if ticker == "" {
		c.sendError("", "ticker is required")
		return
	}
	if msg.Width > 0 {
		c.view.Resize(msg.Width)
	}

	c.stopView()

	bars, err := c.hub.opts.Source.Load(c.ctx, ticker)
	if err != nil {
		slog.Warn("[gateway] history load failed", "session", c.id, "ticker", ticker, "error", err)
		c.sendError(ticker, "history unavailable")
		return
	}

	err = c.view.Switch(c.ctx, ticker, bars)
	if m := c.hub.opts.Metrics; m != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.EngineStarts.WithLabelValues(result).Inc()
	}
	if err != nil {
		c.sendError(ticker, err.Error())
		return
	}

	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	if m := c.hub.opts.Metrics; m != nil {
		m.ActiveEngines.Inc()
	}
	slog.Info("[gateway] subscribed", "session", c.id, "ticker", ticker, "bars", len(bars))
}

// stopView stops the running engine, if any. No surface call of the
// stopped engine happens after it returns.
func (c *Client) stopView() {
	c.view.Close()

	c.mu.Lock()
	wasActive := c.active
	c.active = false
	c.mu.Unlock()

	if wasActive {
		if m := c.hub.opts.Metrics; m != nil {
			m.ActiveEngines.Dec()
		}
	}
}

// surfaceFor is the view's SurfaceFactory.
func (c *Client) surfaceFor(ticker string) render.Surface {
	return &wsSurface{client: c, ticker: ticker}
}

// enqueue queues msg without blocking. A full queue means the browser is
// not keeping up; the connection is closed instead of skipping frames,
// which would leave the remote series inconsistent.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		if m := c.hub.opts.Metrics; m != nil {
			m.WSDropped.Inc()
		}
		c.kick("send buffer full")
		return false
	}
}

func (c *Client) sendError(ticker, text string) {
	c.enqueue(render.Message{Type: render.MessageError, Ticker: ticker, Error: text}.Encode())
}

// kick closes the connection; readPump then tears the view down. It never
// blocks, so it is safe from inside a surface call.
func (c *Client) kick(reason string) {
	c.kickOnce.Do(func() {
		slog.Warn("[gateway] closing ws client", "session", c.id, "reason", reason)
		c.conn.Close()
	})
}
