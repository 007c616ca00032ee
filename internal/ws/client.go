package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"surfpass/internal/constants"
	"surfpass/internal/models"
)

// ClientState represents the lifecycle state of a WebSocket client
type ClientState int32

const (
	ClientStateOpen    ClientState = iota // Authenticated at upgrade, receiving events
	ClientStateClosing                    // Shutdown initiated
	ClientStateClosed                     // Terminal
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 10 * time.Second

	// The feed is server to client only; inbound frames are control frames.
	maxMessageSize = 512
)

// Client represents a single WebSocket connection
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *WSMessage
	connCloseOnce sync.Once
	state         atomic.Int32

	accountID string
	sessionID string
	role      models.Role

	// DroppedMessages tracks how many messages have been dropped due to full buffer
	DroppedMessages int64
}

// NewClient creates a client for a connection already authenticated as
// accountID. sessionID is the token id the connection was opened with.
func NewClient(hub *Hub, conn *websocket.Conn, accountID, sessionID string, role models.Role) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *WSMessage, constants.WSClientSendBuffer),
		accountID: accountID,
		sessionID: sessionID,
		role:      role,
	}
	c.state.Store(int32(ClientStateOpen))
	return c
}

// Close performs cleanup for the client, ensuring it only happens once
func (c *Client) Close() {
	c.transitionTo(ClientStateClosing)
	c.connCloseOnce.Do(func() { c.conn.Close() })
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "component", "ws", "account_id", c.accountID, "error", err)
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write error", "component", "ws", "account_id", c.accountID, "error", err)
				return
			}

		case <-ticker.C:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendHello queues the greeting. It must be called before the client is
// registered with the hub.
func (c *Client) SendHello() {
	c.send <- &WSMessage{
		Op: OpHello,
		Data: HelloPayload{
			ProtocolVersion: ProtocolVersion,
			AccountID:       c.accountID,
			Role:            string(c.role),
			ServerTime:      time.Now().UTC(),
		},
	}
}

func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// IsClosed returns true if the client is closing or closed
func (c *Client) IsClosed() bool {
	state := c.State()
	return state == ClientStateClosing || state == ClientStateClosed
}

// isValidClientTransition checks if a state transition is valid
func isValidClientTransition(from, to ClientState) bool {
	switch from {
	case ClientStateOpen:
		return to == ClientStateClosing
	case ClientStateClosing:
		return to == ClientStateClosed
	default:
		return false
	}
}

func (c *Client) transitionTo(newState ClientState) bool {
	for {
		current := ClientState(c.state.Load())
		if !isValidClientTransition(current, newState) {
			return false
		}
		if c.state.CompareAndSwap(int32(current), int32(newState)) {
			return true
		}
	}
}

// EndSession closes the send channel but leaves the connection to the write
// pump, which flushes queued frames before sending a close frame.
func (c *Client) EndSession() {
	c.transitionTo(ClientStateClosing)
	if c.transitionTo(ClientStateClosed) {
		close(c.send)
	}
}

// CloseSend closes the send channel (called by hub during cleanup)
func (c *Client) CloseSend() {
	if c.State() == ClientStateClosed {
		return
	}
	c.transitionTo(ClientStateClosing)
	if c.transitionTo(ClientStateClosed) {
		close(c.send)
		c.connCloseOnce.Do(func() { c.conn.Close() })
	}
}
