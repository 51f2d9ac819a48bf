package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/leafsii/feed-backend/internal/metrics"
	"github.com/leafsii/feed-backend/internal/store"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 512
	sendBuffer        = 256
	inactivityTimeout = 2 * pongWait
	cleanupInterval   = 30 * time.Second
)

// Subscriber is the read side of the event bus
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) store.Subscription
	PSubscribe(ctx context.Context, patterns ...string) store.Subscription
}

// Hub relays bus messages to connected WebSocket clients by topic
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	bus        Subscriber
	upgrader   websocket.Upgrader
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	mu         sync.RWMutex
}

type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	mu         sync.Mutex
	topics     map[string]struct{}
	userID     string
	lastActive time.Time
}

// Message is the envelope written to clients. Topic is the bus channel.
type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`
	Topics    []string        `json:"topics,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// SubscriptionRequest is what clients send to change their topics
type SubscriptionRequest struct {
	Type   string   `json:"type"` // "subscribe" or "unsubscribe"
	Topics []string `json:"topics"`
}

func NewHub(bus Subscriber, allowedOrigins []string, logger *zap.SugaredLogger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
		logger:     logger,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Run subscribes to the bus and serves the hub until ctx is done. It must
// be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	events := h.bus.PSubscribe(ctx, store.PatternEvents)
	defer events.Close()
	board := h.bus.Subscribe(ctx, store.ChannelLeaderboard)
	defer board.Close()

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	eventCh, boardCh := events.Messages(), board.Messages()
	for {
		select {
		case <-ctx.Done():
			h.closeAll(context.WithoutCancel(ctx))
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.metrics.IncrementConnections(ctx)
			h.logger.Debugw("Client registered", "user_id", client.userID, "topics", client.Topics())

		case client := <-h.unregister:
			h.remove(ctx, client)

		case msg, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			h.broadcast(ctx, msg)

		case msg, ok := <-boardCh:
			if !ok {
				boardCh = nil
				continue
			}
			h.broadcast(ctx, msg)

		case <-cleanup.C:
			h.evictInactive(ctx)
		}
	}
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request. Initial topics may be given as
// ?topics=a,b and changed later with subscribe/unsubscribe messages.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		topics:     make(map[string]struct{}),
		userID:     r.Header.Get("X-User-ID"),
		lastActive: time.Now(),
	}
	client.subscribe(ParseTopics(r.URL.Query().Get("topics")))

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) broadcast(ctx context.Context, msg *store.Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(Message{
		Type:      EventType(msg.Channel),
		Topic:     msg.Channel,
		Data:      json.RawMessage(msg.Payload),
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Warnw("Dropping malformed bus payload", "channel", msg.Channel, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(msg.Channel) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warnw("Dropping slow client", "user_id", client.userID)
		h.remove(ctx, client)
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.mu.Unlock()

	h.metrics.DecrementConnections(ctx)
	h.logger.Debugw("Client unregistered", "user_id", client.userID)
}

func (h *Hub) evictInactive(ctx context.Context) {
	cutoff := time.Now().Add(-inactivityTimeout)

	var stale []*Client
	h.mu.RLock()
	for client := range h.clients {
		if client.lastSeen().Before(cutoff) {
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.remove(ctx, client)
	}
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		h.metrics.DecrementConnections(ctx)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.touch()
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugw("WebSocket read error", "error", err)
			}
			return
		}
		c.touch()
		c.handleMessage(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(raw []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.reply(Message{Type: "error", Error: "invalid message"})
		return
	}

	switch req.Type {
	case "subscribe":
		c.subscribe(req.Topics)
		c.reply(Message{Type: "subscribed", Topics: c.Topics()})
	case "unsubscribe":
		c.unsubscribe(req.Topics)
		c.reply(Message{Type: "unsubscribed", Topics: c.Topics()})
	default:
		c.reply(Message{Type: "error", Error: "unknown message type"})
	}
}

// reply queues a control message; it is dropped if the client is gone or
// its buffer is full
func (c *Client) reply(msg Message) {
	msg.Timestamp = time.Now().Unix()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		for _, ch := range TopicChannels(t) {
			c.topics[ch] = struct{}{}
		}
	}
}

func (c *Client) unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		for _, ch := range TopicChannels(t) {
			delete(c.topics, ch)
		}
	}
}

// Topics returns the client's bus channels and patterns
func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Client) isSubscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[channel]; ok {
		return true
	}
	for t := range c.topics {
		if strings.Contains(t, "*") {
			if ok, _ := path.Match(t, channel); ok {
				return true
			}
		}
	}
	return false
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *Client) lastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}
