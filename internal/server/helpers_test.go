package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/signalrelay/internal/relay"
	"github.com/Tyrowin/signalrelay/internal/server"
)

const testOrigin = "http://localhost:8080"

// startTestServer runs a relay behind httptest and returns it with the
// WebSocket URL of its /ws endpoint.
func startTestServer(t *testing.T, customize func(cfg *server.Config), opts ...server.Option) (*server.Server, *httptest.Server, string) {
	t.Helper()

	cfg := server.NewConfig()
	cfg.StaticDir = t.TempDir()
	if customize != nil {
		customize(cfg)
	}

	srv := server.New(cfg, nil, opts...)
	testServer := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		testServer.Close()
		_ = srv.Shutdown(2 * time.Second)
	})

	return srv, testServer, "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
}

// sequence returns an id generator that yields ids in order.
func sequence(ids ...string) relay.IDGenerator {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i%len(ids)]
		i++
		return id
	}
}

// connectWebSocket creates a WebSocket connection with a browser-like origin.
func connectWebSocket(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, err := dialWithOrigin(url, testOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func dialWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// receiveMessage reads one JSON message, failing the test after two seconds.
func receiveMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	var message map[string]any
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return message
}

// receiveRoster skips messages until a device list arrives and returns its ids.
func receiveRoster(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	for {
		message := receiveMessage(t, conn)
		if message["type"] != relay.TypeDevices {
			continue
		}
		list, _ := message["devices"].([]any)
		ids := make([]string, 0, len(list))
		for _, entry := range list {
			device, _ := entry.(map[string]any)
			id, _ := device["id"].(string)
			ids = append(ids, id)
		}
		return ids
	}
}

// expectNoMessage asserts that nothing arrives on conn within timeout.
func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, message, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, got %s", message)
	}
}

// closeWebSocket performs a clean close handshake.
func closeWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// joinClient connects and consumes the init message, returning the client's id.
func joinClient(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()
	conn := connectWebSocket(t, url)
	initMsg := receiveMessage(t, conn)
	if initMsg["type"] != relay.TypeInit {
		t.Fatalf("Expected init message first, got %v", initMsg)
	}
	id, _ := initMsg["id"].(string)
	return conn, id
}
