package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"uewatch/internal/domain"
	"uewatch/internal/metrics"

	"github.com/gorilla/websocket"
)

// Hub broadcasts match events to connected WebSocket clients. It
// implements domain.Notifier so it can be registered on the bus like
// any other sink.
type Hub struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[string]*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// FeedEvent is the JSON protocol for the /ws match feed.
type FeedEvent struct {
	Type       string    `json:"type"` // "match" | "status"
	Version    string    `json:"version,omitempty"`
	Source     string    `json:"source,omitempty"`
	ChannelID  string    `json:"channel_id,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Text       string    `json:"text,omitempty"`
	DetectedAt time.Time `json:"detected_at,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // status server binds to localhost by default
	},
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*wsClient),
	}
}

func (h *Hub) Name() string { return "websocket" }

// Notify broadcasts the match to every connected client.
func (h *Hub) Notify(_ context.Context, ev domain.MatchEvent) error {
	h.broadcast(FeedEvent{
		Type:       "match",
		Version:    ev.Result.Version,
		Source:     ev.Message.Source,
		ChannelID:  ev.Message.ChannelID,
		MessageID:  ev.Message.MessageID,
		Text:       ev.Message.Text,
		DetectedAt: ev.DetectedAt,
	})
	return nil
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	clientID := fmt.Sprintf("%s-%p", r.RemoteAddr, conn)
	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()
	metrics.WSClients().Inc()

	h.logger.Info("websocket client connected", "client_id", clientID)
	client.send(FeedEvent{Type: "status", Text: "connected"})

	defer func() {
		h.mu.Lock()
		delete(h.clients, clientID)
		h.mu.Unlock()
		metrics.WSClients().Dec()
		conn.Close()
		h.logger.Info("websocket client disconnected", "client_id", clientID)
	}()

	// Read loop: the feed is one-way, but reading is required to
	// observe close frames and drop dead connections.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "err", err)
			}
			return
		}
	}
}

func (h *Hub) broadcast(ev FeedEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	for id, client := range h.clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			h.logger.Debug("websocket write failed", "client_id", id, "err", err)
		}
	}
}

func (c *wsClient) send(ev FeedEvent) {
	data, _ := json.Marshal(ev)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		client.conn.Close()
		delete(h.clients, id)
	}
}
