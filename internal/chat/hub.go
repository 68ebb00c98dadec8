package chat

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/monitoring"
)

// Hub tracks live websocket subscribers per conversation and fans published
// payloads out to them. Delivery is best-effort: a dead connection is dropped
// from the conversation, never retried.
type Hub struct {
	mu            sync.RWMutex
	conversations map[string]map[*websocket.Conn]bool
	logger        *logger.Logger
}

// NewHub creates a new connection hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		conversations: make(map[string]map[*websocket.Conn]bool),
		logger:        log,
	}
}

// Subscribe attaches a connection to a conversation
func (h *Hub) Subscribe(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.conversations[conversationID][conn] = true
	monitoring.ConnectionOpened()
}

// Unsubscribe detaches a connection from a conversation
func (h *Hub) Unsubscribe(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conversations[conversationID]; ok {
		if conns[conn] {
			delete(conns, conn)
			monitoring.ConnectionClosed()
		}
		if len(conns) == 0 {
			delete(h.conversations, conversationID)
		}
	}
}

// Broadcast sends a JSON payload to every subscriber of a conversation.
// Writes are serialized under the hub lock; a connection only ever has one
// concurrent writer. Connections that fail the write are dropped and closed.
func (h *Hub) Broadcast(conversationID string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conversations[conversationID]
	for conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			h.logger.WithError(err).Debugf("Dropping dead subscriber from conversation %s", conversationID)
			monitoring.RecordBroadcast(false)
			delete(conns, conn)
			monitoring.ConnectionClosed()
			conn.Close()
			continue
		}
		monitoring.RecordBroadcast(true)
	}
	if len(conns) == 0 {
		delete(h.conversations, conversationID)
	}
}

// WriteTo sends a JSON payload to a single subscriber, serialized under the
// same lock as broadcasts
func (h *Hub) WriteTo(conversationID string, conn *websocket.Conn, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.conversations[conversationID][conn] {
		return
	}
	if err := conn.WriteJSON(payload); err != nil {
		h.logger.WithError(err).Debugf("Failed direct write to subscriber of conversation %s", conversationID)
	}
}

// Subscribers returns the current subscriber count of a conversation
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conversations[conversationID])
}
