package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fuzzymachine/efficiency/server/internal/analytics"
)

const (
	// EventStatistics is the event name of every broadcast.
	EventStatistics = "statistics"

	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxClientFrame caps inbound frames; clients have nothing to say.
	maxClientFrame = 512

	// buildTimeout bounds one statistics computation.
	buildTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Source produces the statistics to broadcast.
type Source interface {
	Statistics(ctx context.Context) (analytics.Statistics, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (analytics.Statistics, error)

func (f SourceFunc) Statistics(ctx context.Context) (analytics.Statistics, error) { return f(ctx) }

// Message is the JSON envelope sent to clients on every broadcast.
type Message struct {
	Event       string               `json:"event"`
	GeneratedAt time.Time            `json:"generated_at"`
	Data        analytics.Statistics `json:"data"`
}

// Hub manages WebSocket client connections and broadcasts statistics to all
// connected clients every interval and on Notify.
type Hub struct {
	source   Source
	interval time.Duration
	notify   chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
	last    []byte
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that reads from source and broadcasts every interval.
func New(source Source, interval time.Duration) *Hub {
	return &Hub{
		source:   source,
		interval: interval,
		notify:   make(chan struct{}, 1),
		clients:  make(map[*client]struct{}),
	}
}

// Run starts the broadcast loop. Run blocks until ctx is cancelled, then
// closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast(ctx)
		case <-h.notify:
			h.broadcast(ctx)
		}
	}
}

// Notify requests a broadcast as soon as possible. Calls made while one is
// already pending are coalesced. Notify never blocks.
func (h *Hub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the current statistics immediately on connect, then continues to
// receive broadcasts from the Run loop. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data := h.latest(r.Context()); data != nil {
		h.offer(c, data)
	}

	go c.writeLoop()
	c.readLoop()
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// offer queues data for c unless c is gone or its buffer is full.
func (h *Hub) offer(c *client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// latest returns the last broadcast message, building one if nothing has
// been broadcast yet. It returns nil when statistics are unavailable.
func (h *Hub) latest(ctx context.Context) []byte {
	h.mu.RLock()
	data := h.last
	h.mu.RUnlock()
	if data != nil {
		return data
	}
	data, err := h.buildMessage(ctx)
	if err != nil {
		slog.Warn("ws: build statistics", "err", err)
		return nil
	}
	return data
}

func (h *Hub) broadcast(ctx context.Context) {
	data, err := h.buildMessage(ctx)
	if err != nil {
		slog.Warn("ws: build statistics", "err", err)
		return
	}

	// Sends happen under the lock so unregister cannot close a channel
	// mid-send.
	var slow []*client
	h.mu.Lock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		slog.Debug("ws: dropping slow client", "remote", c.conn.RemoteAddr())
		h.unregister(c)
	}
}

func (h *Hub) buildMessage(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	stats, err := h.source.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{
		Event:       EventStatistics,
		GeneratedAt: time.Now().UTC(),
		Data:        stats,
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writeLoop forwards queued messages to the connection and keeps it alive
// with pings. It owns all data writes on conn and exits when send is closed
// or a write fails.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	write := func(kind int, payload []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			err = write(websocket.TextMessage, msg)
		case <-ping.C:
			err = write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// readLoop discards client frames, which only matter for pong and close
// handling. A missed pong deadline ends the loop.
func (c *client) readLoop() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxClientFrame)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
