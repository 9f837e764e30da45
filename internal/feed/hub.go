package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questkeeper/internal/config"
	"github.com/lawnchairsociety/questkeeper/internal/events"
	"github.com/lawnchairsociety/questkeeper/internal/logger"
)

const writeWait = 10 * time.Second

// Hub fans published events out to every connected WebSocket client and
// routes their commands to a Commander.
type Hub struct {
	cfg       config.FeedConfig
	commander Commander
	upgrader  websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte // Closed by the hub when the client is removed
}

// NewHub creates a hub. commander may be nil for a read-only feed.
func NewHub(cfg config.FeedConfig, commander Commander) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	h := &Hub{
		cfg:       cfg,
		commander: commander,
		clients:   make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := h.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("Feed connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}
	return h
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "Feed is shutting down.", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Debug("Feed upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	if h.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageSize)
	}

	c := &client{conn: conn, send: make(chan []byte, h.cfg.SendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	logger.Info("Feed client connected", "remote_addr", conn.RemoteAddr().String())

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// removeLocked drops c and closes its queue, which stops its writer.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// enqueueLocked queues msg for c. A client whose queue is full is dropped.
func (h *Hub) enqueueLocked(c *client, msg []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		logger.Warning("Dropping slow feed client", "remote_addr", c.remoteAddr())
		h.removeLocked(c)
	}
}

func (h *Hub) enqueue(c *client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(c, msg)
}

// Publish broadcasts e to every client. It satisfies events.Publisher and can
// be subscribed to a bus as a handler.
func (h *Hub) Publish(e events.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.enqueueLocked(c, msg)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Feed client read error", "remote_addr", c.remoteAddr(), "error", err)
			}
			return
		}

		reply := h.execute(message)
		data, err := json.Marshal(reply)
		if err != nil {
			logger.Error("Failed to encode feed reply", "op", reply.Op, "error", err)
			continue
		}
		h.enqueue(c, data)
	}
}

func (h *Hub) execute(message []byte) Reply {
	var cmd Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		return Reply{Text: "Malformed command."}
	}
	if h.commander == nil {
		return Reply{Op: cmd.Op, Text: "This feed is read-only."}
	}
	return h.commander.Execute(cmd)
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("Feed client write error", "remote_addr", c.remoteAddr(), "error", err)
			h.remove(c)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}
