package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"taskdash/internal/domain"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingInterval   = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
	wsSendBuffer     = 64
	hubBroadcastSize = 256
)

// Message is the envelope pushed to websocket clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type userMessage struct {
	userID  int64
	payload []byte
}

// Hub tracks websocket connections per user. Run owns the client maps; every
// other method talks to it over channels.
type Hub struct {
	clients     map[*wsClient]struct{}
	userClients map[int64]map[*wsClient]struct{}

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan userMessage
	stopped    chan struct{}
	stopOnce   sync.Once

	// mu guards the maps for readers outside Run.
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:     make(map[*wsClient]struct{}),
		userClients: make(map[int64]map[*wsClient]struct{}),
		register:    make(chan *wsClient),
		unregister:  make(chan *wsClient),
		broadcast:   make(chan userMessage, hubBroadcastSize),
		stopped:     make(chan struct{}),
		logger:      logger,
	}
}

// Run serves the hub until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	h.logger.InfoContext(ctx, "websocket hub started")
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.registerClient(c)
		case c := <-h.unregister:
			h.unregisterClient(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() { close(h.stopped) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.closeSend()
	}
	h.clients = make(map[*wsClient]struct{})
	h.userClients = make(map[int64]map[*wsClient]struct{})
	h.logger.Info("websocket hub stopped")
}

func (h *Hub) registerClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.userClients[c.userID] == nil {
		h.userClients[c.userID] = make(map[*wsClient]struct{})
	}
	h.userClients[c.userID][c] = struct{}{}
	h.logger.Debug("websocket client registered", "user_id", c.userID, "total_clients", len(h.clients))
}

func (h *Hub) unregisterClient(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if set, ok := h.userClients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userClients, c.userID)
		}
	}
	delete(h.clients, c)
	c.closeSend()
	h.logger.Debug("websocket client unregistered", "user_id", c.userID, "total_clients", len(h.clients))
}

func (h *Hub) deliver(msg userMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userClients[msg.userID] {
		select {
		case c.send <- msg.payload:
		default:
			h.logger.Warn("websocket send buffer full, dropping message", "user_id", msg.userID)
		}
	}
}

// attach adds c unless the hub has stopped.
func (h *Hub) attach(c *wsClient) bool {
	select {
	case h.register <- c:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) detach(c *wsClient) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// SendToUser queues payload for every connection of userID.
func (h *Hub) SendToUser(userID int64, payload []byte) {
	select {
	case h.broadcast <- userMessage{userID: userID, payload: payload}:
	case <-h.stopped:
	}
}

// PushNotification sends n to its recipient's open connections.
func (h *Hub) PushNotification(n domain.Notification) error {
	payload, err := json.Marshal(Message{Type: "notification", Data: n})
	if err != nil {
		return err
	}
	h.SendToUser(n.UserID, payload)
	return nil
}

// ClientCount reports how many connections userID has open.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int64
	logger *slog.Logger
	once   sync.Once
}

// closeSend is only called from the hub goroutine.
func (c *wsClient) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// readPump discards client frames; it exists to process pongs and notice
// disconnects.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.detach(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("websocket write error", "user_id", c.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWS upgrades an authenticated request and attaches it to hub. The
// default upgrader rejects cross-origin handshakes.
func serveWS(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := principalFromContext(r.Context())
		if !ok {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "user_id", principal.User.ID, "error", err)
			return
		}
		c := &wsClient{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, wsSendBuffer),
			userID: principal.User.ID,
			logger: logger,
		}
		if !hub.attach(c) {
			_ = conn.Close()
			return
		}
		go c.writePump()
		go c.readPump()
	}
}
