package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"tutorhub-portal/internal/event"
)

func dial(t *testing.T, server *httptest.Server, scope string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?scope=" + scope
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e event.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHubRoutesEventsByScope(t *testing.T) {
	bus := event.NewBus()
	hub := NewHub(bus)
	go hub.Run()
	defer hub.Stop()

	upgrader := NewUpgrader(nil)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = upgrader.Serve(hub, w, r, r.URL.Query().Get("scope"))
	}))
	defer server.Close()

	alice := dial(t, server, "alice")
	bob := dial(t, server, "bob")

	require.Eventually(t, func() bool { return hub.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(event.New(event.TypeSessionRefreshed, "", nil))
	require.Equal(t, event.TypeSessionRefreshed, readEvent(t, alice).Type)
	require.Equal(t, event.TypeSessionRefreshed, readEvent(t, bob).Type)

	bus.Publish(event.New(event.TypeSessionExpired, "bob", nil))
	bus.Publish(event.New(event.TypeSessionLogin, "alice", map[string]string{"user": "alice"}))

	got := readEvent(t, alice)
	require.Equal(t, event.TypeSessionLogin, got.Type)
	require.Equal(t, event.TypeSessionExpired, readEvent(t, bob).Type)
}

func TestUpgraderChecksOrigin(t *testing.T) {
	u := NewUpgrader([]string{"https://portal.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	require.False(t, u.upgrader.CheckOrigin(r))

	r.Header.Set("Origin", "https://portal.example.com")
	require.True(t, u.upgrader.CheckOrigin(r))
}
