package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"surfpass/internal/constants"
)

const (
	// maxDroppedMessagesBeforeDisconnect is the threshold for disconnecting slow clients
	maxDroppedMessagesBeforeDisconnect = 100
)

// Hub fans dashboard events out to every connected staff and admin client.
// It holds no durable state; a reconnecting client reloads the dashboard
// over HTTP.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *WSMessage
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	stopOnce   sync.Once
	sequence   int64
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *WSMessage, constants.WSBroadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				client.CloseSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			slog.Info("shutdown complete", "component", "hub")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("client registered", "component", "hub", "account_id", client.accountID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.CloseSend()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				h.sendToClientLocked(client, message)
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds client to the fan-out. It returns false when the hub has
// shut down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.shutdown:
		return false
	}
}

func (h *Hub) sendToClientLocked(client *Client, msg *WSMessage) {
	if client.IsClosed() {
		return
	}
	select {
	case client.send <- msg:
	default:
		// Client buffer full - track the drop
		dropped := atomic.AddInt64(&client.DroppedMessages, 1)

		// Log warning periodically (every 10 drops)
		if dropped%10 == 1 {
			slog.Warn("dropped messages for slow client", "component", "hub", "dropped", dropped, "account_id", client.accountID)
		}

		// Disconnect clients that fall too far behind
		if dropped >= maxDroppedMessagesBeforeDisconnect {
			slog.Warn("disconnecting slow client", "component", "hub", "account_id", client.accountID, "dropped", dropped)
			// Close will be handled by the client's pumps
			client.Close()
		}
	}
}

func (h *Hub) nextSequence() int64 {
	return atomic.AddInt64(&h.sequence, 1)
}

// Publish queues a DISPATCH event for every client. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(eventType string, data any) {
	seq := h.nextSequence()
	msg := &WSMessage{
		Op:   OpDispatch,
		Type: eventType,
		Data: data,
		Seq:  &seq,
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("dropping dashboard event, broadcast queue full", "component", "hub", "type", eventType)
	}
}

// DisconnectAccount ends every feed connection of accountID with an
// INVALID_SESSION frame. It returns the number of connections closed.
func (h *Hub) DisconnectAccount(accountID string) int {
	return h.invalidate(func(c *Client) bool { return c.accountID == accountID })
}

// DisconnectSession ends the feed connections opened with sessionID.
func (h *Hub) DisconnectSession(sessionID string) int {
	if sessionID == "" {
		return 0
	}
	return h.invalidate(func(c *Client) bool { return c.sessionID == sessionID })
}

func (h *Hub) invalidate(match func(*Client) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- &WSMessage{Op: OpInvalidSession, Data: InvalidSessionPayload{Resumable: false}}:
		default:
		}
		delete(h.clients, client)
		client.EndSession()
		closed++
		slog.Info("feed session invalidated", "component", "hub", "account_id", client.accountID)
	}
	return closed
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.shutdown) })
}
