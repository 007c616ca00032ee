package ws

import "time"

// Operation codes for WebSocket messages
type OpCode int

// ProtocolVersion is the exact server/client WS protocol version.
// Bump this only for breaking wire-contract changes.
const ProtocolVersion = 1

const (
	// DISPATCH - Events with type field
	OpDispatch OpCode = 0

	// Lifecycle ops (Server -> Client)
	OpHello          OpCode = 1 // Sent on connection
	OpInvalidSession OpCode = 3 // Session ended, reconnect with a fresh token
)

type WSMessage struct {
	Op   OpCode `json:"op"`
	Type string `json:"t,omitempty"` // Event type (only for DISPATCH)
	Data any    `json:"d,omitempty"`
	Seq  *int64 `json:"s,omitempty"`
}

type HelloPayload struct {
	ProtocolVersion int       `json:"protocol_version"`
	AccountID       string    `json:"account_id"`
	Role            string    `json:"role"`
	ServerTime      time.Time `json:"server_time"`
}

type InvalidSessionPayload struct {
	Resumable bool `json:"resumable"`
}
