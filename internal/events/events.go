// Package events broadcasts pipeline progress over WebSocket so a GUI host
// can follow a run and refresh a live preview. The hub implements
// pipeline.Reporter; hosts connect to /events and receive one JSON message
// per notification.
package events

import (
	"encoding/json"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "comictl_events_active_connections",
			Help: "Number of active event stream connections",
		},
	)

	messagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comictl_events_messages_sent_total",
			Help: "Total number of event messages sent",
		},
	)
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The event stream is bound to localhost for GUI hosts.
		return true
	},
}

// Event is one progress notification on the wire.
type Event struct {
	Type       string `json:"type"`
	ImageIndex int    `json:"image_index,omitempty"`
	Total      int    `json:"total,omitempty"`
	Step       int    `json:"step,omitempty"`
	TotalSteps int    `json:"total_steps,omitempty"`
	Major      bool   `json:"major,omitempty"`
	Path       string `json:"path,omitempty"`
	Stage      string `json:"stage,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Hub upgrades connections and fans pipeline notifications out to every
// connected client. Sends are fire-and-forget; a client that fails a write
// is dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	server  *http.Server
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// Handler returns the HTTP handler serving the event stream at /events.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", h.serveWS)
	return mux
}

// Start serves the event stream on addr in a background goroutine.
func (h *Hub) Start(addr string) {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("event server failed", "addr", addr, "error", err)
		}
	}()

	slog.Info("event stream listening", "addr", addr)
}

// Close disconnects all clients and stops the server if one was started.
func (h *Hub) Close() error {
	h.mu.Lock()
	for conn := range h.clients {
		_ = conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	if h.server != nil {
		return h.server.Close()
	}
	return nil
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade event connection", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	activeConnections.Inc()
	slog.Debug("event client connected", "remote_addr", r.RemoteAddr)

	go h.readLoop(conn)
}

// readLoop drains client messages (clients only listen, but pongs and close
// frames must be consumed) and removes the client once the connection ends.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close()
		activeConnections.Dec()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("event client read error", "error", err)
			}
			return
		}
	}
}

// broadcast sends the event to every client, dropping clients whose write
// fails.
func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			delete(h.clients, conn)
			_ = conn.Close()
			activeConnections.Dec()
			continue
		}
		messagesSentTotal.Inc()
	}
}

// Progress implements pipeline.Reporter.
func (h *Hub) Progress(imageIndex, total, step, totalSteps int, major bool) {
	h.broadcast(Event{
		Type:       "progress",
		ImageIndex: imageIndex,
		Total:      total,
		Step:       step,
		TotalSteps: totalSteps,
		Major:      major,
	})
}

// Skipped implements pipeline.Reporter.
func (h *Hub) Skipped(path, stage, message string) {
	h.broadcast(Event{
		Type:    "skipped",
		Path:    path,
		Stage:   stage,
		Message: message,
	})
}

// Processed implements pipeline.Reporter. The cleaned image itself stays on
// disk; the event carries the path so hosts can refresh their preview.
func (h *Hub) Processed(imageIndex int, cleaned image.Image, path string) {
	h.broadcast(Event{
		Type:       "processed",
		ImageIndex: imageIndex,
		Path:       path,
	})
}
