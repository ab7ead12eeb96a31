package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"k8s.io/klog/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound messages buffered per client before it is dropped.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Client represents a WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub maintains the set of active clients and fans session events out to
// them. It implements service.Notifier.
type Hub struct {
	// Registered clients by session ID
	sessions map[string]map[*Client]bool

	// Events published by the service
	broadcast chan service.Event

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	counts chan countRequest
	done   chan struct{}
}

var _ service.Notifier = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan service.Event, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		counts:     make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.sessions {
				for client := range clients {
					h.unregisterClient(client)
				}
			}
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case req := <-h.counts:
			req.reply <- len(h.sessions[req.sessionID])
		}
	}
}

// Publish queues an event for the clients of its session. It never blocks
// the caller: when the queue is full the event is dropped.
func (h *Hub) Publish(event service.Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		klog.V(1).InfoS("WebSocket queue full, dropping event", "session", event.SessionID, "type", event.Type)
	}
}

// ClientCount returns the number of clients subscribed to a session.
func (h *Hub) ClientCount(sessionID string) int {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

// ServeWS upgrades the request and subscribes the connection to sessionID.
// The initial events are delivered before anything published later.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, initial ...service.Event) {
	client := &Client{
		hub:       h,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
	}
	for _, event := range initial {
		if data, err := json.Marshal(event); err == nil {
			client.send <- data
		}
	}

	// Register before the handshake completes so no event published after
	// the client connects is missed.
	select {
	case h.register <- client:
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		klog.ErrorS(err, "WebSocket upgrade failed", "session", sessionID)
		client.leave()
		return
	}
	client.conn = conn

	go client.writePump()
	go client.readPump()
}

// registerClient adds a client to a session
func (h *Hub) registerClient(client *Client) {
	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true

	klog.V(1).InfoS("Client registered", "session", client.sessionID,
		"clients", len(h.sessions[client.sessionID]))
}

// unregisterClient removes a client from a session
func (h *Hub) unregisterClient(client *Client) {
	clients, ok := h.sessions[client.sessionID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, client.sessionID)
	}

	klog.V(1).InfoS("Client unregistered", "session", client.sessionID, "clients", len(clients))
}

// broadcastEvent sends an event to all clients in its session
func (h *Hub) broadcastEvent(event service.Event) {
	clients, ok := h.sessions[event.SessionID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal WebSocket event", "type", event.Type)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.unregisterClient(client)
		}
	}
}

// leave asks the hub to forget the client.
func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// readPump drains the connection so control frames are processed. Clients
// do not send commands over the socket.
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				klog.ErrorS(err, "WebSocket read failed", "session", c.sessionID)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection, one
// JSON event per frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
