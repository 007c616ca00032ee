package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"surfpass/internal/models"
	"surfpass/internal/ws"
)

type WebSocketHandler struct {
	hub            *ws.Hub
	auth           *AuthMiddleware
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// FeedSessions ends live feed connections whose session is no longer valid.
type FeedSessions interface {
	DisconnectAccount(accountID string) int
	DisconnectSession(sessionID string) int
}

// NewWebSocketHandler serves the live dashboard feed. Origins follow the
// same rules as CORS.
func NewWebSocketHandler(hub *ws.Hub, authMiddleware *AuthMiddleware, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:            hub,
		auth:           authMiddleware,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(origin, h.allowedOrigins)
}

// GET /ws?token=
// Browsers cannot set headers on a websocket handshake, so the session token
// travels in the query string.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		unauthenticated(w)
		return
	}

	claims, account, err := h.auth.authenticate(r.Context(), token, models.RoleStaff, models.RoleAdmin)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := ws.NewClient(h.hub, conn, account.ID, claims.ID, account.Role)
	client.SendHello()
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
