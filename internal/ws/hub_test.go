package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"surfpass/internal/models"
)

func startFeed(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accountID := r.URL.Query().Get("account")
		if accountID == "" {
			accountID = "SP42"
		}
		client := NewClient(hub, conn, accountID, r.URL.Query().Get("session"), models.RoleStaff)
		client.SendHello()
		if !hub.Register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	return dialAs(t, srv, "", "")
}

func dialAs(t *testing.T, srv *httptest.Server, accountID, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?account=" + accountID + "&session=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublishReachesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	srv := startFeed(t, hub)
	a := dial(t, srv)
	b := dial(t, srv)

	for _, conn := range []*websocket.Conn{a, b} {
		hello := readMessage(t, conn)
		if hello["op"] != float64(OpHello) {
			t.Fatalf("first message op = %v, want hello", hello["op"])
		}
		data := hello["d"].(map[string]any)
		if data["account_id"] != "SP42" || data["role"] != "STAFF" {
			t.Fatalf("hello payload = %v", data)
		}
	}
	waitForClients(t, hub, 2)

	hub.Publish("CHECKED_IN", map[string]string{"account_id": "SP7"})
	hub.Publish("EXPENSE_RECORDED", map[string]int{"amount": 150})

	for _, conn := range []*websocket.Conn{a, b} {
		first := readMessage(t, conn)
		second := readMessage(t, conn)
		if first["t"] != "CHECKED_IN" || second["t"] != "EXPENSE_RECORDED" {
			t.Fatalf("event order = %v, %v", first["t"], second["t"])
		}
		if first["s"].(float64) >= second["s"].(float64) {
			t.Fatalf("sequence not increasing: %v then %v", first["s"], second["s"])
		}
	}
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	srv := startFeed(t, hub)
	conn := dial(t, srv)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	srv := startFeed(t, hub)
	conn := dial(t, srv)
	readMessage(t, conn)
	waitForClients(t, hub, 1)

	hub.Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to close after shutdown")
	}
	if hub.Register(&Client{}) {
		t.Fatal("register after shutdown should fail")
	}
}

func TestPublishDoesNotBlockWhenQueueFull(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Publish("CHECKED_IN", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked with no hub loop running")
	}
}

func TestClientStateTransitions(t *testing.T) {
	if !isValidClientTransition(ClientStateOpen, ClientStateClosing) {
		t.Fatal("open -> closing should be valid")
	}
	if isValidClientTransition(ClientStateClosed, ClientStateOpen) {
		t.Fatal("closed is terminal")
	}
	if isValidClientTransition(ClientStateOpen, ClientStateClosed) {
		t.Fatal("open must pass through closing")
	}
}

func TestHubDisconnectEndsMatchingSessions(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	srv := startFeed(t, hub)
	first := dialAs(t, srv, "SP1", "sess-a")
	second := dialAs(t, srv, "SP1", "sess-b")
	other := dialAs(t, srv, "SP2", "sess-c")
	for _, conn := range []*websocket.Conn{first, second, other} {
		readMessage(t, conn)
	}
	waitForClients(t, hub, 3)

	if n := hub.DisconnectSession("sess-a"); n != 1 {
		t.Fatalf("DisconnectSession() = %d, want 1", n)
	}
	if msg := readMessage(t, first); msg["op"] != float64(OpInvalidSession) {
		t.Fatalf("ended session got op %v, want invalid session", msg["op"])
	}
	expectClosed(t, first)
	waitForClients(t, hub, 2)

	if n := hub.DisconnectAccount("SP1"); n != 1 {
		t.Fatalf("DisconnectAccount() = %d, want 1", n)
	}
	if msg := readMessage(t, second); msg["op"] != float64(OpInvalidSession) {
		t.Fatalf("deactivated account got op %v, want invalid session", msg["op"])
	}
	expectClosed(t, second)
	waitForClients(t, hub, 1)

	hub.Publish("CHECKED_IN", map[string]string{"account_id": "SP7"})
	if msg := readMessage(t, other); msg["t"] != "CHECKED_IN" {
		t.Fatalf("remaining client got %v", msg)
	}
	if n := hub.DisconnectSession(""); n != 0 {
		t.Fatalf("DisconnectSession(\"\") = %d, want 0", n)
	}
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open")
	}
}
