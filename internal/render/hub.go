// v0
// internal/render/hub.go
package render

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// HubOptions tunes the websocket hub.
type HubOptions struct {
	// SendBuffer is the number of frames queued per client before the
	// client is considered too slow and disconnected.
	SendBuffer int
	// WriteTimeout bounds a single websocket write.
	WriteTimeout time.Duration
	// Initial returns the frame sent to a client right after it connects.
	Initial func() Frame
	// OnClients is called with the client count whenever it changes.
	OnClients func(int)
}

// Hub pushes frames to every connected websocket client. Broadcast never
// blocks: a client whose queue is full is dropped.
type Hub struct {
	log      *slog.Logger
	opts     HubOptions
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// NewHub builds a hub.
func NewHub(logger *slog.Logger, opts HubOptions) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Hub{
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast queues f for every client.
func (h *Hub) Broadcast(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.log.Error("ws_frame_encode_failed", slog.Any("err", err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("ws_client_too_slow", slog.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams frames until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws_upgrade_failed", slog.Any("err", err))
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, h.opts.SendBuffer)}

	// Registering and queueing the initial frame under one lock means any
	// later broadcast lands after it.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.opts.Initial != nil {
		if payload, err := json.Marshal(h.opts.Initial()); err == nil {
			c.send <- payload
		}
	}
	count := len(h.clients)
	h.mu.Unlock()
	h.notify(count)
	h.log.Info("ws_client_connected", slog.String("remote", conn.RemoteAddr().String()), slog.Int("clients", count))

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains client messages so control frames are processed, and
// unregisters the client when the connection ends.
func (h *Hub) readLoop(c *wsClient) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		count := len(h.clients)
		h.mu.Unlock()
		h.notify(count)
		h.log.Info("ws_client_disconnected", slog.String("remote", c.conn.RemoteAddr().String()), slog.Int("clients", count))
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Warn("ws_write_failed", slog.Any("err", err))
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
}

func (h *Hub) notify(count int) {
	if h.opts.OnClients != nil {
		h.opts.OnClients(count)
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	h.notify(0)
}
