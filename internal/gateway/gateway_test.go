package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"livechart/internal/engine"
	"livechart/internal/history"
	"livechart/internal/marketdata/ticksim"
	"livechart/internal/render"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	cfg.TicksPerBar = 3

	synth := history.NewSynthetic(ticksim.NewRand(11))
	synth.Now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	hub := NewHub(context.Background(), Options{
		Engine:  cfg,
		Source:  synth,
		NewRand: func() ticksim.Rand { return ticksim.NewRand(5) },
		Tickers: []string{"TCS", "TITAN"},
	})
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, time.Now())
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) render.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := render.DecodeMessage(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func TestWS_SubscribeStreamsConsistentFrames(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteJSON(ClientMsg{Type: "subscribe", Ticker: "tcs"}); err != nil {
		t.Fatal(err)
	}

	snap := readMsg(t, conn)
	if snap.Type != render.MessageSnapshot || snap.Ticker != "TCS" {
		t.Fatalf("first message = %s %s, want TCS snapshot", snap.Type, snap.Ticker)
	}
	if len(snap.Snapshot.Price) != 60 || len(snap.Snapshot.SMA) != 60-13 {
		t.Fatalf("snapshot has %d bars, %d sma points", len(snap.Snapshot.Price), len(snap.Snapshot.SMA))
	}

	chart := render.NewChart(800)
	r := &render.Replayer{Surface: chart}
	r.Handle(snap)

	for i := 1; i <= 10; i++ {
		m := readMsg(t, conn)
		if m.Type != render.MessageFrame || m.Frame.Seq != uint64(i) {
			t.Fatalf("message %d = %s seq %d", i, m.Type, m.Seq)
		}
		r.Handle(m)
	}
	if errs := chart.Errors(); len(errs) != 0 {
		t.Fatalf("replayed frames rejected: %v", errs)
	}
	// Ticks 3, 6 and 9 closed bars.
	if n := len(chart.Snapshot().Price); n != 63 {
		t.Errorf("bars after 10 ticks = %d, want 63", n)
	}
}

func TestWS_SwitchStopsPreviousTicker(t *testing.T) {
	srv, hub := newTestServer(t)
	conn := dial(t, srv)

	conn.WriteJSON(ClientMsg{Type: "subscribe", Ticker: "TCS"})
	readMsg(t, conn) // snapshot
	readMsg(t, conn) // first frame

	conn.WriteJSON(ClientMsg{Type: "subscribe", Ticker: "TITAN"})
	switched := false
	for i := 0; i < 200; i++ {
		m := readMsg(t, conn)
		if m.Type == render.MessageSnapshot && m.Ticker == "TITAN" {
			switched = true
			if m.Snapshot.Price[0].Open != 3400 {
				t.Errorf("TITAN first open = %v", m.Snapshot.Price[0].Open)
			}
			continue
		}
		if switched && m.Ticker != "TITAN" {
			t.Fatalf("received %s for %s after switching", m.Type, m.Ticker)
		}
		if switched && m.Type == render.MessageFrame && m.Frame.Seq >= 5 {
			break
		}
	}
	if !switched {
		t.Fatal("no TITAN snapshot")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d", hub.ClientCount())
	}
}

func TestWS_ResizeAndErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	conn.WriteJSON(ClientMsg{Type: "subscribe"})
	if m := readMsg(t, conn); m.Type != render.MessageError {
		t.Fatalf("empty ticker: got %s", m.Type)
	}

	conn.WriteJSON(ClientMsg{Type: "subscribe", Ticker: "INFY", Width: 640})
	var sawResize, sawSnapshot bool
	for i := 0; i < 5 && !(sawResize && sawSnapshot); i++ {
		m := readMsg(t, conn)
		switch m.Type {
		case render.MessageResize:
			sawResize = m.Width == 640
		case render.MessageSnapshot:
			sawSnapshot = true
		}
	}
	if !sawResize || !sawSnapshot {
		t.Fatalf("resize=%v snapshot=%v", sawResize, sawSnapshot)
	}
}

func TestChartData(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/chart-data/RELIANCE")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 60 {
		t.Fatalf("rows = %d", len(rows))
	}
	first := rows[0]
	if first["time"] != "2024-04-02" {
		t.Errorf("time = %v", first["time"])
	}
	if first["value"] != first["close"] {
		t.Errorf("value %v != close %v", first["value"], first["close"])
	}
	if _, ok := first["volume"]; ok {
		t.Error("unseeded history should omit volume")
	}
}

func TestChartData_ConcurrentRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8*20)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				resp, err := http.Get(srv.URL + "/api/chart-data/TCS")
				if err != nil {
					errs <- err
					return
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("status %d", resp.StatusCode)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

type catalog []string

func (c catalog) Tickers(context.Context) ([]string, error) { return c, nil }

func TestTickers_MergesCatalog(t *testing.T) {
	hub := NewHub(context.Background(), Options{
		Engine:  engine.DefaultConfig(),
		Source:  history.NewSynthetic(ticksim.NewRand(1)),
		Tickers: []string{"TCS", "TITAN"},
		Catalog: catalog{"WIPRO", "TCS"},
	})
	defer hub.Close()
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub, time.Now())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tickers", nil))

	var got []string
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"TCS", "TITAN", "WIPRO"}, got); diff != "" {
		t.Errorf("tickers (-want +got):\n%s", diff)
	}
}
