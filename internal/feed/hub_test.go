package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawnchairsociety/questkeeper/internal/config"
	"github.com/lawnchairsociety/questkeeper/internal/events"
)

func feedConfig() config.FeedConfig {
	cfg := config.DefaultConfig().Feed
	cfg.Enabled = true
	return cfg
}

func startHub(t *testing.T, cfg config.FeedConfig, commander Commander) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(cfg, commander)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func connect(t *testing.T, hub *Hub, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	before := hub.Clients()
	conn, _, err := dial(t, srv, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), nil)
	first := connect(t, hub, srv)
	second := connect(t, hub, srv)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Publish(events.Event{Name: "quest:accepted", QuestID: "rats", At: at}))

	for _, conn := range []*websocket.Conn{first, second} {
		var got events.Event
		readJSON(t, conn, &got)
		assert.Equal(t, "quest:accepted", got.Name)
		assert.Equal(t, "rats", got.QuestID)
		assert.True(t, got.At.Equal(at))
	}
}

func TestHub_BusSubscription(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), nil)
	conn := connect(t, hub, srv)

	bus := events.NewBus()
	bus.SubscribeAll(hub.Publish)
	require.NoError(t, bus.Publish(events.Event{Name: "reward:gold", QuestID: "rats", Payload: map[string]int{"amount": 5}}))

	var got struct {
		Name    string         `json:"name"`
		Payload map[string]int `json:"payload"`
	}
	readJSON(t, conn, &got)
	assert.Equal(t, "reward:gold", got.Name)
	assert.Equal(t, 5, got.Payload["amount"])
}

func TestHub_CommandReplies(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), newEngine(t))
	conn := connect(t, hub, srv)

	require.NoError(t, conn.WriteJSON(Command{Op: OpAccept, Quest: "rats"}))
	var reply Reply
	readJSON(t, conn, &reply)
	assert.Equal(t, Reply{Op: OpAccept, OK: true, Text: "Quest accepted: Rat Problem"}, reply)

	require.NoError(t, conn.WriteJSON(Command{Op: OpEvent, Type: "kill", Target: "rat", Amount: 2}))
	readJSON(t, conn, &reply)
	assert.True(t, reply.OK)
}

func TestHub_MalformedCommand(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), newEngine(t))
	conn := connect(t, hub, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("accept rats")))
	var reply Reply
	readJSON(t, conn, &reply)
	assert.False(t, reply.OK)
	assert.Equal(t, "Malformed command.", reply.Text)
}

func TestHub_ReadOnly(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), nil)
	conn := connect(t, hub, srv)

	require.NoError(t, conn.WriteJSON(Command{Op: OpJournal}))
	var reply Reply
	readJSON(t, conn, &reply)
	assert.Equal(t, Reply{Op: OpJournal, Text: "This feed is read-only."}, reply)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	cfg := feedConfig()
	cfg.AllowedOrigins = []string{"https://game.example"}
	hub, srv := startHub(t, cfg, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := dial(t, srv, header)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Clients())

	header.Set("Origin", "https://game.example")
	conn, _, err := dial(t, srv, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_DropsSlowClient(t *testing.T) {
	cfg := feedConfig()
	cfg.SendBuffer = 1
	hub := NewHub(cfg, nil)

	// No writer is attached, so the queue never drains.
	c := &client{send: make(chan []byte, cfg.SendBuffer)}
	require.True(t, hub.add(c))

	require.NoError(t, hub.Publish(events.Event{Name: "quest:available", QuestID: "a"}))
	assert.Equal(t, 1, hub.Clients())
	require.NoError(t, hub.Publish(events.Event{Name: "quest:available", QuestID: "b"}))
	assert.Equal(t, 0, hub.Clients())

	<-c.send
	_, open := <-c.send
	assert.False(t, open, "queue should be closed once the client is dropped")

	// Later events skip the dropped client.
	require.NoError(t, hub.Publish(events.Event{Name: "quest:available", QuestID: "c"}))
}

func TestHub_Close(t *testing.T) {
	hub, srv := startHub(t, feedConfig(), nil)
	conn := connect(t, hub, srv)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	_, resp, err := dial(t, srv, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
