package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"livechart/internal/history"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// RegisterRoutes registers the chart endpoints on mux.
func RegisterRoutes(mux *http.ServeMux, hub *Hub, processStart time.Time) {
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("[gateway] ws upgrade error", "error", err)
			return
		}
		hub.HandleWSRequest(conn)
	})

	// History as the chart-data JSON array; "value" mirrors close for
	// line-mode charts.
	mux.HandleFunc("GET /api/chart-data/{ticker}", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		ticker := strings.ToUpper(r.PathValue("ticker"))
		bars, err := hub.opts.Source.Load(r.Context(), ticker)
		switch {
		case errors.Is(err, history.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown ticker"})
			return
		case err != nil:
			slog.Warn("[gateway] chart-data failed", "ticker", ticker, "error", err)
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(map[string]string{"error": "history unavailable"})
			return
		}
		json.NewEncoder(w).Encode(bars)
	})

	mux.HandleFunc("GET /api/tickers", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hub.tickers(r.Context()))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"ws_clients": hub.ClientCount(),
			"uptime_sec": int64(time.Since(processStart).Seconds()),
			"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

// tickers returns the configured tickers followed by any stored ones not
// already listed.
func (h *Hub) tickers(ctx context.Context) []string {
	out := make([]string, 0, len(h.opts.Tickers))
	seen := make(map[string]bool)
	for _, t := range h.opts.Tickers {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if h.opts.Catalog == nil {
		return out
	}
	stored, err := h.opts.Catalog.Tickers(ctx)
	if err != nil {
		slog.Warn("[gateway] ticker catalog failed", "error", err)
		return out
	}
	for _, t := range stored {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
