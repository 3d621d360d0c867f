// Package stream pushes simulated quotes to WebSocket clients.
package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"optionDesk/internal/domain"
	"optionDesk/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
	feedBuffer     = 256
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// QuoteFeed is the subset of the simulator the hub consumes.
type QuoteFeed interface {
	Subscribe(buffer int) (<-chan domain.Quote, func())
}

type client struct {
	conn   *websocket.Conn
	symbol string // empty receives every instrument
	send   chan domain.Quote
}

// Hub fans simulator ticks out to connected clients.
type Hub struct {
	feed   QuoteFeed
	logger ports.Logger

	lock    sync.Mutex
	clients map[*client]bool
}

// NewHub creates a hub reading from feed.
func NewHub(feed QuoteFeed, logger ports.Logger) *Hub {
	return &Hub{
		feed:    feed,
		logger:  logger,
		clients: make(map[*client]bool),
	}
}

// Run forwards ticks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	quotes, unsubscribe := h.feed.Subscribe(feedBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case q, ok := <-quotes:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(q)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(q domain.Quote) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		if c.symbol != "" && c.symbol != q.Symbol {
			continue
		}
		select {
		case c.send <- q:
		default:
			// Client is not keeping up.
			h.logger.Warn(context.Background(), "Dropping slow WebSocket client", map[string]interface{}{"remote": c.conn.RemoteAddr().String()})
			h.remove(c)
		}
	}
}

// remove must be called with h.lock held.
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

// ServeWS upgrades the request and streams quotes for symbol (all symbols if empty).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, symbol string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	c := &client{conn: conn, symbol: symbol, send: make(chan domain.Quote, clientBuffer)}

	h.lock.Lock()
	h.clients[c] = true
	h.lock.Unlock()
	h.logger.Debug(r.Context(), "WebSocket client connected", map[string]interface{}{"symbol": symbol, "remote": conn.RemoteAddr().String()})

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.lock.Lock()
		h.remove(c)
		h.lock.Unlock()
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case q, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(q); err != nil {
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
