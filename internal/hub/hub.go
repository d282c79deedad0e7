// Package hub fans simulation updates out to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"routeiq/internal/logging"
	"routeiq/internal/metrics"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
	maxReadBytes = 4096
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Envelope is the JSON frame sent for every published update.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	// readDone is closed when the read loop exits.
	readDone chan struct{}
}

// Hub tracks connected clients. Each client has one writer goroutine; a
// client whose buffer is full is dropped rather than blocking publishers.
type Hub struct {
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	log        *slog.Logger
	pingPeriod time.Duration
	pongWait   time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func New(m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS is enforced by the HTTP middleware; the dashboard may be
			// served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics:    m,
		log:        logging.Component("hub"),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		clients:    make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection, echoes every client message back as
// "ack:<msg>", and streams published updates until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws.upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), readDone: make(chan struct{})}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	h.readLoop(c)
	close(c.readDone)
	h.unregister(c)
	<-done
	conn.Close()
}

// readLoop owns every read-side call on the conn, deadlines included.
// A peer that stops answering pings times out after pongWait.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.pongWait))
		h.enqueue(c, append([]byte("ack:"), msg...))
	}
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				h.closeGracefully(c)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("ws.write", "err", err)
				h.abandon(c)
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				h.log.Debug("ws.ping", "err", err)
				h.abandon(c)
				return
			}
		}
	}
}

// closeGracefully sends a close frame and gives the peer writeTimeout to
// answer before the conn is torn down under the read loop.
func (h *Hub) closeGracefully(c *client) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	t := time.NewTimer(writeTimeout)
	defer t.Stop()
	select {
	case <-c.readDone:
	case <-t.C:
		c.conn.Close()
	}
}

// abandon closes the conn so the read loop exits and unregisters c, then
// drains c.send until unregister closes it.
func (h *Hub) abandon(c *client) {
	c.conn.Close()
	for range c.send {
	}
}

// Publish sends v, wrapped in an Envelope, to every connected client.
func (h *Hub) Publish(_ context.Context, topic string, v any) {
	msg, err := json.Marshal(Envelope{Type: topic, Data: v})
	if err != nil {
		h.log.Warn("ws.marshal", "topic", topic, "err", err)
		return
	}
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.log.Warn("ws.drop_slow_client", "remote", c.conn.RemoteAddr().String())
		h.metrics.WSDropped()
		// Closing the conn ends its read loop, which unregisters it.
		c.conn.Close()
	}
}

// enqueue sends a reply to a single client unless it has gone away.
func (h *Hub) enqueue(c *client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.WSClients(0)
	h.mu.Unlock()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.WSClients(len(h.clients))
	h.log.Debug("ws.connected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.WSClients(len(h.clients))
	h.log.Debug("ws.disconnected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))
}
